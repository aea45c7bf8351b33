// Package handler implements HTTP request handlers for the value stream API.
//
// MapHandler exposes map CRUD, process and connection edits, stateless
// calculation, and JSON/YAML import and export. Routes use Go 1.22 ServeMux
// method and wildcard patterns; see MapHandler.Routes.
//
// # Response Format
//
// Success responses return JSON data with 200 or 201. Error responses return
// JSON with {error, details}. Validation failures map to 400, unknown maps,
// processes and connections to 404, and ID conflicts to 409.
//
// # Middleware
//
// Chain composes Recover, CORS, Logger, Metrics and APIKey. APIKey guards
// write methods with a bcrypt hash from configuration.
package handler

// Package config loads the service configuration.
//
// Values are layered, lowest priority first:
//
//  1. Default()
//  2. a YAML file (config.yaml, configs/config.yaml, or the path given to Load)
//  3. TIMESHEETS_* environment variables
//
// Environment keys follow the struct nesting, for example
// TIMESHEETS_SERVER_PORT, TIMESHEETS_STORAGE_BACKEND=s3,
// TIMESHEETS_STORAGE_BUCKET and TIMESHEETS_UPLOAD_MAX_BYTES.
package config

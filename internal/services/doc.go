// Package services implements the business logic layer between the HTTP
// handlers and the storage and parsing packages.
//
// # Available Services
//
//   - TimesheetService: upload, filter, download and summary of timesheet
//     workbooks
//   - HealthService: liveness, readiness and version information
//
// # Object keys
//
// An upload with id U produces up to three objects:
//
//	U_<sanitised name>          the workbook as uploaded
//	U_processed.csv             the parsed record table
//	U_filtered_by_date.xlsx     the most recent filtered export
//
// # Error Handling
//
// Services return *errors.AppError values whose type decides the HTTP
// status: validation 400, not found 404, parsing 422, storage 500. Core
// sentinels such as dataprocessing.ErrEmptyResult stay reachable through
// errors.Is.
package services

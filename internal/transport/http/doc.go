// Package http implements the HTTP handlers of the timesheet service. It is
// a thin layer: requests are decoded and validated here, the work happens in
// the services package.
//
// # Routes
//
//	GET  /                              upload page
//	POST /upload                        multipart upload, field "file"
//	POST /filter                        unique_id, start_date, end_date
//	GET  /download/{filename}           filtered workbook
//	POST /api/uploads                   upload, JSON response
//	GET  /api/uploads/{uploadID}/summary per-activity totals
//	POST /api/filter                    filter, JSON request and response
//	GET  /api/health, /api/version      health and build information
//
// The browser routes answer with HTML pages rendered from embedded
// templates. A request that sends or accepts application/json gets JSON
// instead, and failures become RFC 7807 problem documents:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "no data found in the selected date range",
//	    "instance": "/filter"
//	}
//
// # Testing
//
// Handlers are tested with httptest against a mocked TimesheetService.
package http

// Package routes builds the archive API endpoint URLs for one aerodrome.
package routes

import "strconv"

// Routes holds the three archive endpoints for a base URL and aerodrome.
//
// ReportsForYear and ReportByID are prefixes; the year or report ID is
// appended verbatim. Nothing is validated or escaped, so identifiers must
// already be URL-safe.
type Routes struct {
	Years          string
	ReportsForYear string
	ReportByID     string
}

// New builds the routes for baseURL (expected to end with "/") and aerodromeID.
func New(baseURL, aerodromeID string) Routes {
	prefix := baseURL + "v1/aerodromes/" + aerodromeID + "/reports/"
	return Routes{
		Years:          prefix + "years",
		ReportsForYear: prefix + "years/",
		ReportByID:     prefix + "by-id/",
	}
}

// YearURL returns the reports-for-year endpoint for year.
func (r Routes) YearURL(year int) string {
	return r.ReportsForYear + strconv.Itoa(year)
}

// ReportURL returns the report-by-id endpoint for reportID.
func (r Routes) ReportURL(reportID string) string {
	return r.ReportByID + reportID
}

// Package gdrive exports finished notes to Google Drive.
//
// Credentials come from an OAuth client secret file plus a cached token file
// produced once by `lecturenote drive auth`. Notes are uploaded into a single
// named folder, created on first use, and the view link is returned so it can
// be stored on the note result.
package gdrive

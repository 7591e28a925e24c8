// Package notes turns aligned slide segments into the final lecture note.
//
// For every segment the Generator asks the synthesis model for a summary
// that merges the slide text with what the lecturer said; segments a student
// flagged for help also get a step-by-step explanation. The results are
// rendered to markdown (with YAML front matter) and optionally DOCX, written
// to the object store, and optionally exported to Google Drive.
package notes

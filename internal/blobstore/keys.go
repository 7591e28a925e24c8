package blobstore

import "fmt"

// VideoKey is where a task's source video lives.
func VideoKey(taskID, ext string) string {
	return fmt.Sprintf("videos/%s/original%s", taskID, ext)
}

// SlideImageKey is where the representative frame of a slide is kept.
func SlideImageKey(taskID string, slideNumber int) string {
	return fmt.Sprintf("processing/%s/slides/slide_%03d.jpg", taskID, slideNumber)
}

// NoteMarkdownKey is the rendered markdown note.
func NoteMarkdownKey(taskID string) string {
	return fmt.Sprintf("outputs/%s/note.md", taskID)
}

// NoteDocxKey is the optional DOCX rendering of the note.
func NoteDocxKey(taskID string) string {
	return fmt.Sprintf("outputs/%s/note.docx", taskID)
}

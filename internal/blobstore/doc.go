// Package blobstore keeps task objects (source videos, slide images, rendered
// notes) on the local filesystem under slash-separated keys and issues
// HMAC-signed, expiring URLs for direct upload and download through the API.
package blobstore

// Package preflight provides readiness checks for external services
// and filesystem paths that LectureNote depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup so misconfiguration is
//     visible before the first upload arrives.
//   - The CLI "lecturenote deps" and "lecturenote status" commands render the
//     individual results (CheckSystemDeps, CheckDirectoryAccess, CheckLLM).
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight

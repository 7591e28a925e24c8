// Package daemonctl starts, stops, and restarts a background `lecturenote
// serve` process. Liveness is judged by the HTTP health endpoint and the pid
// file the daemon writes next to its lock.
package daemonctl

// Package logging provides the diagnostic log for labkeeper.
//
// Every launch attempt, reconciliation pass and registry transition is written
// as a JSON line to <data dir>/labkeeper.log. The file is rotated by size
// through [RotatingWriter] and older backups may be gzip compressed.
//
// Child loggers carry correlation attributes:
//
//	log := logger.WithLaunch(launchID)
//	log.Info("spawned server", "pid", pid, "port", port)
//
//	log = log.WithSession(strconv.Itoa(pid))
//	log.Warn("readiness probe timed out")
//
// [NopLogger] discards everything and is what tests and disabled logging use.
package logging

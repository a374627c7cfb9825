// Package session keeps the live boards of every player session.
//
// Manager stores service.Session values in memory, keyed by a
// case-insensitive ID. Each session owns one engine.Board dealt from the
// session's seed, so resetting a session deals the same opening layout again.
// IDs are four hex characters when the caller does not choose one.
//
// Persistence:
//
// A manager built with NewManagerWithPersistence writes sessions through a
// SessionPersistence. Two implementations are provided:
//   - FilePersistence writes one JSON file per session
//   - GormPersistence stores rows in a Postgres board_sessions table
//
// Both store the board as an engine.Snapshot, so a session saved in the
// middle of an animation resumes exactly where it stopped, random generator
// included.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", configs)
//	manager := session.NewManagerWithPersistence(persistence)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := manager.Create("", "classic", configs.GetDefault(), seed)
//
// Touching a session only updates LastAccessedAt in memory; the time is
// written with the session's next save. CleanupExpiredSessions drops idle
// sessions from memory and leaves their stored copies alone.
package session

// Package common contains the pieces shared by every other package: the session
// configuration (Config) with the reference cache policy, and the logging setup.
//
// Logging:
//
//	All packages log through dragonboat's logger registry (logger.GetLogger(name)).
//	InitLoggers installs a factory producing "LEVEL | package | message" lines and sets
//	the level of every logger listed in PackageLoggers. Loggers are looked up by name at
//	package initialization, the factory only has to be installed before the first
//	message is written.
package common

// Package mysql provides repositories for archiving generated treasury
// reports. A file-backed memory implementation covers local development
// while the SQL implementation persists the archive to MySQL.
package mysql

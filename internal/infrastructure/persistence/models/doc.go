// Package models holds the GORM rows behind the catalog and the job queue.
// Domain types never carry gorm tags; repositories convert at the boundary.
package models

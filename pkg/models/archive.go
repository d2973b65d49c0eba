package models

import "time"

// Archive is a stored model archive (OMEX). It is created once per distinct
// content hash and never mutated afterwards.
type Archive struct {
	// Hash is the content address of the archive bytes and its primary key.
	Hash string `json:"Hash"`
	// Filename is the name of the file as originally uploaded.
	Filename string `json:"Filename"`
	// Bucket and Path locate the bytes in the blob store.
	Bucket string `json:"Bucket"`
	Path   string `json:"Path"`
	// Size is the archive size in bytes.
	Size       int64     `json:"Size"`
	CreateTime time.Time `json:"CreateTime"`
}

package models

import "time"

// File - метаданные объекта в хранилище медиа
type File struct {
	ID        string    `json:"id" bson:"_id"`
	BucketID  string    `json:"bucket_id" bson:"bucket_id"`
	Name      string    `json:"name" bson:"name"`
	MimeType  string    `json:"mime_type" bson:"mime_type"`
	Size      int64     `json:"size" bson:"size"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

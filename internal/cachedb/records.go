package cachedb

import (
	"time"

	"github.com/any-hub/resource-hub/internal/storage"
)

// Storage 是 storages 表中的一行，Location 已还原为绝对路径。
type Storage struct {
	ID           int64               `json:"id"`
	Location     string              `json:"location"`
	Type         storage.StorageType `json:"-"`
	TypeName     string              `json:"type"`
	Timestamp    time.Time           `json:"timestamp"`
	PreInstalled bool                `json:"pre_installed"`
	Active       bool                `json:"active"`
}

// Resource 是 resources 表中的一行及其所属存储。
type Resource struct {
	ID              int64     `json:"id"`
	StorageID       int64     `json:"storage_id"`
	StorageLocation string    `json:"storage_location"`
	ResourceType    string    `json:"resource_type"`
	Name            string    `json:"name"`
	Filename        string    `json:"filename"`
	Version         int       `json:"version"`
	Checksum        string    `json:"checksum"`
	Size            int64     `json:"size"`
	Timestamp       time.Time `json:"timestamp"`
	Active          bool      `json:"active"`
}

// Tag 是 tags 表中的一行。
type Tag struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	Name         string `json:"name"`
	Comment      string `json:"comment"`
	ResourceType string `json:"resource_type"`
}

// Filter 限定 Resources 查询范围，零值返回所有活跃资源。
type Filter struct {
	ResourceType    string
	StorageLocation string
	IncludeInactive bool
}

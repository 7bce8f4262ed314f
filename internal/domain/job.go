package domain

import "time"

// Job is one submitted batch of visits tracked through its lifecycle
type Job struct {
	JobID       string
	Status      Status
	Results     []ResultRecord
	Errors      []ErrorRecord
	CreatedAt   time.Time
	FinalizedAt time.Time
}

// Clone returns a deep copy of the job so callers never share slices with the store
func (j *Job) Clone() *Job {
	c := *j
	if j.Results != nil {
		c.Results = append([]ResultRecord(nil), j.Results...)
	}
	if j.Errors != nil {
		c.Errors = append([]ErrorRecord(nil), j.Errors...)
	}
	return &c
}

// Visit is one store plus the image URLs captured during the visit
type Visit struct {
	StoreID   string
	ImageURLs []string
}

// StoreRecord is a store directory entry
type StoreRecord struct {
	StoreID   string `db:"store_id" yaml:"store_id"`
	StoreName string `db:"store_name" yaml:"store_name"`
	AreaCode  string `db:"area_code" yaml:"area_code"`
}

// ResultRecord is produced once per successfully measured image
type ResultRecord struct {
	StoreID   string
	StoreName string
	ImageURL  string
	Perimeter int
}

// ErrorRecord is produced once per unknown store or per failed image.
// Err is rendered to text only when the record leaves the process.
type ErrorRecord struct {
	StoreID string
	Err     error
}

// Message renders the error for serialization
func (r ErrorRecord) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

package dto

import "github.com/cuongbtq/visit-metrics/internal/domain"

// SubmitJobRequest is the body of POST /api/submit
type SubmitJobRequest struct {
	Count  *int       `json:"count" binding:"required"`
	Visits []VisitDTO `json:"visits" binding:"required"`
}

// VisitDTO is one visit of a submission
type VisitDTO struct {
	StoreID   string   `json:"store_id"`
	ImageURLs []string `json:"image_url"`
}

// SubmitJobResponse is returned once a job has been accepted
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// ResultDTO is a measured image
type ResultDTO struct {
	StoreID   string `json:"store_id"`
	StoreName string `json:"store_name"`
	ImageURL  string `json:"image_url"`
	Perimeter int    `json:"perimeter"`
}

// ErrorDTO is a failed visit or image
type ErrorDTO struct {
	StoreID string `json:"store_id"`
	Error   string `json:"error"`
}

// ToVisits converts the request visits into domain visits
func (r *SubmitJobRequest) ToVisits() []domain.Visit {
	visits := make([]domain.Visit, len(r.Visits))
	for i, v := range r.Visits {
		visits[i] = domain.Visit{
			StoreID:   v.StoreID,
			ImageURLs: append([]string(nil), v.ImageURLs...),
		}
	}
	return visits
}

// NewResultDTOs renders result records, never returning nil
func NewResultDTOs(records []domain.ResultRecord) []ResultDTO {
	out := make([]ResultDTO, len(records))
	for i, r := range records {
		out[i] = ResultDTO{
			StoreID:   r.StoreID,
			StoreName: r.StoreName,
			ImageURL:  r.ImageURL,
			Perimeter: r.Perimeter,
		}
	}
	return out
}

// NewErrorDTOs renders error records, never returning nil
func NewErrorDTOs(records []domain.ErrorRecord) []ErrorDTO {
	out := make([]ErrorDTO, len(records))
	for i, e := range records {
		out[i] = ErrorDTO{StoreID: e.StoreID, Error: e.Message()}
	}
	return out
}

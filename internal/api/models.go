package api

// NewImageRequest is the payload for POST /api/new-image.
type NewImageRequest struct {
	MimeType string `json:"mimeType" validate:"required"`
}

// NewImageResponse tells the client where to upload the source image and
// which endpoint starts the resize once the upload finished.
type NewImageResponse struct {
	UploadEndpoint string `json:"uploadEndpoint"`
	ResizeEndpoint string `json:"resizeEndpoint"`
}

// ResizeResponse is returned once a resize has been queued.
type ResizeResponse struct {
	StatusEndpoint string `json:"statusEndpoint"`
}

// StatusResponse reports the progress of a job.
type StatusResponse struct {
	ResizeStatus string `json:"resizeStatus"`

	// FinalURL stays null until the job is Done.
	FinalURL *string `json:"finalUrl"`
}

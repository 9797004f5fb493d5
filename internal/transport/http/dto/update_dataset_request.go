package dto

type UpdateDatasetRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (r *UpdateDatasetRequest) Validate() []string {
	var errors []string

	if r.Name != nil && *r.Name == "" {
		errors = append(errors, "name cannot be empty")
	}
	if r.Name == nil && r.Description == nil {
		errors = append(errors, "at least one field must be provided")
	}

	return errors
}

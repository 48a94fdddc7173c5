package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// an update must carry at least one field
	v.RegisterStructValidation(updatePartStructValidation, UpdatePartRequest{})

	return v
}

func updatePartStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdatePartRequest)
	if req.AltIdentifier == nil && req.Class == nil && req.Rack == nil && req.Packaging == nil &&
		req.Unit == nil && req.Type == nil && req.Description == nil && req.SortOrder == nil {
		sl.ReportError(req, "UpdatePartRequest", "UpdatePartRequest", "at_least_one_field", "")
	}
}

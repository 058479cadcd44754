package service

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"robotics-catalog/internal/model"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// ProductFields carries the loosely typed values of a write request, as they
// arrive from a form or a JSON object. Multipart fields that were sent more
// than once arrive as []string.
type ProductFields map[string]any

// first unwraps single-valued sequences so a repeated form field and a plain
// value parse the same way.
func first(v any) any {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil
		}
		return t[0]
	case []any:
		if len(t) == 0 {
			return nil
		}
		return t[0]
	}
	return v
}

func isBlank(v any) bool {
	v = first(v)
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func stringField(fields ProductFields, key string) (string, error) {
	s, err := cast.ToStringE(first(fields[key]))
	if err != nil {
		return "", &model.MalformedInputError{Field: key, Err: err}
	}
	return strings.TrimSpace(s), nil
}

// parseFeatures accepts a ready sequence or a single comma-separated string.
func parseFeatures(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		out := []string{}
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = strings.TrimSpace(s)
		}
		return out, nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, &model.MalformedInputError{Field: "features", Err: err}
			}
			out[i] = strings.TrimSpace(s)
		}
		return out, nil
	default:
		return nil, &model.MalformedInputError{Field: "features", Err: errors.New("expected a list or a comma separated string")}
	}
}

// parseSpecifications accepts a typed value, a map, or the same as JSON text.
func parseSpecifications(v any) (model.Specifications, error) {
	var raw any
	switch t := v.(type) {
	case nil:
		return model.Specifications{}, nil
	case model.Specifications:
		return normalizeSpecifications(t), nil
	case *model.Specifications:
		if t == nil {
			return model.Specifications{}, nil
		}
		return normalizeSpecifications(*t), nil
	case []string:
		if len(t) == 1 {
			return parseSpecifications(t[0])
		}
		return model.Specifications{}, &model.MalformedInputError{Field: "specifications", Err: errors.New("expected a single value")}
	case string:
		if strings.TrimSpace(t) == "" {
			return model.Specifications{}, nil
		}
		if err := json.Unmarshal([]byte(t), &raw); err != nil {
			return model.Specifications{}, &model.MalformedInputError{Field: "specifications", Err: err}
		}
	default:
		raw = v
	}

	var spec model.Specifications
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &spec,
	})
	if err != nil {
		return model.Specifications{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return model.Specifications{}, &model.MalformedInputError{Field: "specifications", Err: err}
	}
	return normalizeSpecifications(spec), nil
}

func normalizeSpecifications(s model.Specifications) model.Specifications {
	s.Weight = strings.TrimSpace(s.Weight)
	s.Dimensions = strings.TrimSpace(s.Dimensions)
	s.Power = strings.TrimSpace(s.Power)
	if len(s.Compatibility) == 0 {
		s.Compatibility = nil
	}
	return s
}

func parsePrice(v any, problems map[string]string) float64 {
	if isBlank(v) {
		problems["price"] = "Product price is required"
		return 0
	}
	price, err := cast.ToFloat64E(first(v))
	if err != nil || math.IsInf(price, 0) || math.IsNaN(price) {
		problems["price"] = "Price must be a number"
		return 0
	}
	return price
}

func parseStock(v any, problems map[string]string) int {
	if isBlank(v) {
		return 0
	}
	stock, ok := wholeNumber(first(v))
	if !ok {
		problems["stock"] = "Stock must be a whole number"
	}
	return stock
}

// wholeNumber reads a decimal integer. Strings are base 10 only, and floats
// must carry no fraction.
func wholeNumber(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	case float32, float64:
		f := cast.ToFloat64(t)
		if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
			return 0, false
		}
		return int(f), true
	}
	n, err := cast.ToIntE(v)
	return n, err == nil
}

// mergeValidation folds validator failures into the parse problems already
// collected, keeping the parse message when both name the same field.
func mergeValidation(problems map[string]string, err error) error {
	if err != nil {
		var vErr *model.ValidationError
		if !errors.As(err, &vErr) {
			return err
		}
		for field, msg := range vErr.Fields {
			if _, seen := problems[field]; !seen {
				problems[field] = msg
			}
		}
	}
	if len(problems) > 0 {
		return &model.ValidationError{Fields: problems}
	}
	return nil
}

// buildProduct assembles and validates a complete product from request
// fields. Images are left empty; the pipeline attaches them after upload.
func buildProduct(fields ProductFields) (*model.Product, error) {
	p := &model.Product{Images: []model.Image{}}
	problems := map[string]string{}

	var err error
	if p.Name, err = stringField(fields, "name"); err != nil {
		return nil, err
	}
	if p.Description, err = stringField(fields, "description"); err != nil {
		return nil, err
	}
	category, err := stringField(fields, "category")
	if err != nil {
		return nil, err
	}
	p.Category = model.Category(category)
	p.Price = parsePrice(fields["price"], problems)
	p.Stock = parseStock(fields["stock"], problems)

	if p.Features, err = parseFeatures(fields["features"]); err != nil {
		return nil, err
	}
	if p.Specifications, err = parseSpecifications(fields["specifications"]); err != nil {
		return nil, err
	}

	if err := mergeValidation(problems, p.Validate()); err != nil {
		return nil, err
	}
	return p, nil
}

// buildPatch converts the fields present in an update request. Absent keys
// stay nil and are left untouched by the repository. Images are never taken
// from fields.
func buildPatch(fields ProductFields) (model.ProductPatch, error) {
	var patch model.ProductPatch
	problems := map[string]string{}

	for _, key := range []string{"name", "description", "category"} {
		if _, ok := fields[key]; !ok {
			continue
		}
		s, err := stringField(fields, key)
		if err != nil {
			return model.ProductPatch{}, err
		}
		switch key {
		case "name":
			patch.Name = &s
		case "description":
			patch.Description = &s
		case "category":
			c := model.Category(s)
			patch.Category = &c
		}
	}
	if v, ok := fields["price"]; ok {
		price := parsePrice(v, problems)
		patch.Price = &price
	}
	if v, ok := fields["stock"]; ok {
		stock := parseStock(v, problems)
		patch.Stock = &stock
	}
	if v, ok := fields["features"]; ok {
		features, err := parseFeatures(v)
		if err != nil {
			return model.ProductPatch{}, err
		}
		patch.Features = &features
	}
	if v, ok := fields["specifications"]; ok {
		spec, err := parseSpecifications(v)
		if err != nil {
			return model.ProductPatch{}, err
		}
		patch.Specifications = &spec
	}

	if err := mergeValidation(problems, patch.Validate()); err != nil {
		return model.ProductPatch{}, err
	}
	return patch, nil
}

package update

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/gyeh/grdload/internal/authz"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/normalize"
)

// setField decodes v and writes it onto e. Values arrive either as JSON
// scalars or as strings typed on the command line.
func setField(e *model.Episode, field string, v any) error {
	var err error
	switch field {
	case authz.FieldTag:
		e.Tag, err = decodeTag(v)
	case authz.FieldTechnology:
		// A null or blank value clears the flag, the same default ingest
		// applies to an empty AT (S/N) cell. Unrecognized text is an error.
		var b *bool
		b, err = decodeBool(v)
		e.Technology = b != nil && *b
	case authz.FieldTechnologyDetail:
		e.TechnologyDetail, err = decodeString(v)
	case authz.FieldTechnologyAmount:
		e.TechnologyAmount, err = decodeAmount(v)
	case authz.FieldNewbornStatus:
		e.NewbornStatus, err = decodeString(v)
	case authz.FieldNewbornAmount:
		e.NewbornAmount, err = decodeAmount(v)
	case authz.FieldRescueDelayDays:
		e.RescueDelayDays, err = decodeDays(v)
	case authz.FieldDemoraRescate:
		e.DemoraRescatePremium, err = decodeAmount(v)
	case authz.FieldOutlierSuperior:
		e.OutlierSuperiorPremium, err = decodeAmount(v)
	case authz.FieldValidated:
		e.Validated, err = decodeBool(v)
	case authz.FieldReviewStatus:
		e.ReviewStatus, err = decodeString(v)
	case authz.FieldReviewComment:
		e.ReviewComment, err = decodeString(v)
	case authz.FieldReviewedAt:
		e.ReviewedAt, err = decodeTime(v)
	case authz.FieldReviewedBy:
		e.ReviewedBy, err = decodeString(v)
	default:
		return ErrUnknownField
	}
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	return nil
}

func decodeString(v any) (*string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return normalize.Clean(&x), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}
	return normalize.Clean(&s), nil
}

func decodeBool(v any) (*bool, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &x, nil
	case string:
		if normalize.Clean(&x) == nil {
			return nil, nil
		}
		if b := normalize.ParseBool(&x); b != nil {
			return b, nil
		}
		return nil, fmt.Errorf("not a yes/no value: %q", x)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func decodeAmount(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return x, nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case bool:
		return decimal.Zero, fmt.Errorf("not an amount: %v", x)
	case string:
		if normalize.Clean(&x) == nil {
			return decimal.Zero, nil
		}
		if d := normalize.ParseAmount(&x); d != nil {
			return *d, nil
		}
		return decimal.Zero, fmt.Errorf("not an amount: %q", x)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(f), nil
}

func decodeDays(v any) (*int, error) {
	var n int
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return nil, fmt.Errorf("not a day count: %v", x)
	case string:
		if normalize.Clean(&x) == nil {
			return nil, nil
		}
		p := normalize.ParseInt(&x)
		if p == nil {
			return nil, fmt.Errorf("not a day count: %q", x)
		}
		n = *p
	default:
		var err error
		if n, err = cast.ToIntE(v); err != nil {
			return nil, err
		}
	}
	if n < 0 {
		return nil, fmt.Errorf("negative day count %d", n)
	}
	return &n, nil
}

func decodeTag(v any) (*model.Tag, error) {
	s, err := decodeString(v)
	if err != nil || s == nil {
		return nil, err
	}
	tag, err := model.ParseTag(*s)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func decodeTime(v any) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &x, nil
	case string:
		if normalize.Clean(&x) == nil {
			return nil, nil
		}
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return &t, nil
		}
		if t := normalize.ParseDate(&x); t != nil {
			return t, nil
		}
		return nil, fmt.Errorf("not a date: %q", x)
	}
	return nil, fmt.Errorf("not a date: %v", v)
}

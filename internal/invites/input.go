package invites

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"wedding-invites/internal/models"

	"github.com/go-playground/validator/v10"
)

// AddInput is the guest data required to issue an invite.
type AddInput struct {
	Name        string `json:"name" form:"name" validate:"required"`
	CountryCode string `json:"countryCode" form:"countryCode" validate:"required"`
	Phone       string `json:"phone" form:"phone" validate:"required"`
	TableNumber string `json:"tableNumber" form:"tableNumber" validate:"required"`
}

func (in AddInput) normalized() AddInput {
	in.Name = strings.TrimSpace(in.Name)
	in.CountryCode = strings.TrimSpace(in.CountryCode)
	in.Phone = strings.TrimSpace(in.Phone)
	in.TableNumber = strings.TrimSpace(in.TableNumber)
	return in
}

// UpdateInput carries a partial update. Nil fields keep their stored value.
type UpdateInput struct {
	Name        *string `json:"name" form:"name" validate:"omitnil,min=1"`
	CountryCode *string `json:"countryCode" form:"countryCode" validate:"omitnil,min=1"`
	Phone       *string `json:"phone" form:"phone" validate:"omitnil,min=1"`
	TableNumber *string `json:"tableNumber" form:"tableNumber" validate:"omitnil,min=1"`
	CheckedIn   *bool   `json:"checkedIn" form:"checkedIn"`
	CheckInTime *string `json:"checkInTime" form:"checkInTime"`
}

func (in UpdateInput) normalized() UpdateInput {
	for _, f := range []**string{&in.Name, &in.CountryCode, &in.Phone, &in.TableNumber, &in.CheckInTime} {
		if *f != nil {
			v := strings.TrimSpace(**f)
			*f = &v
		}
	}
	return in
}

// apply returns current with the supplied fields overwritten. Checking a guest
// in without an explicit time stamps it with now; checking out clears it.
func (in UpdateInput) apply(current models.Invite, now time.Time) models.Invite {
	out := current
	if in.Name != nil {
		out.Name = *in.Name
	}
	if in.CountryCode != nil {
		out.CountryCode = *in.CountryCode
	}
	if in.Phone != nil {
		out.Phone = *in.Phone
	}
	if in.TableNumber != nil {
		out.TableNumber = *in.TableNumber
	}
	if in.CheckedIn != nil {
		out.CheckedIn = *in.CheckedIn
		if in.CheckInTime == nil {
			switch {
			case out.CheckedIn && !current.CheckedIn:
				out.CheckInTime = now.Format(time.RFC3339)
			case !out.CheckedIn:
				out.CheckInTime = ""
			}
		}
	}
	if in.CheckInTime != nil {
		out.CheckInTime = *in.CheckInTime
	}
	return out
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

func validateStruct(v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

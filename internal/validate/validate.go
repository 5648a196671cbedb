// Package validate checks externally submitted datasets before they are
// accepted. A single bad record rejects its whole collection.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/pointkeeper/internal/model"
)

var (
	hexColorRegexp = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	usernameRegexp = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so messages match the submitted payload.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("hexcolor_short", func(fl validator.FieldLevel) bool {
		return hexColorRegexp.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegexp.MatchString(fl.Field().String())
	})
	return v
}

// Error describes the first invalid record of a rejected collection.
type Error struct {
	Collection string
	Index      int
	RecordID   string
	Field      string
	Rule       string
}

func (e *Error) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("invalid %s[%d] (id %s): field %q failed %q", e.Collection, e.Index, id, e.Field, e.Rule)
}

// HexColor reports whether s is #RGB or #RRGGBB.
func HexColor(s string) bool {
	return hexColorRegexp.MatchString(s)
}

// Username reports whether s is 3-20 lowercase letters, digits or underscores.
func Username(s string) bool {
	return usernameRegexp.MatchString(s)
}

// Record validates one entity and returns a descriptive *Error.
func Record(collection string, index int, id string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate %s[%d]: %w", collection, index, err)
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return &Error{
		Collection: collection,
		Index:      index,
		RecordID:   id,
		Field:      field,
		Rule:       fe.Tag(),
	}
}

func each[T any](collection string, items []T, id func(T) string) error {
	for i, item := range items {
		if err := Record(collection, i, id(item), item); err != nil {
			return err
		}
	}
	return nil
}

func Members(items []model.Member) error {
	return each("members", items, func(m model.Member) string { return m.ID })
}

func Rules(items []model.Rule) error {
	return each("rules", items, func(r model.Rule) string { return r.ID })
}

func WarningRules(items []model.WarningRule) error {
	return each("warningRules", items, func(w model.WarningRule) string { return w.ID })
}

func Transactions(items []model.Transaction) error {
	return each("transactions", items, func(t model.Transaction) string { return t.ID })
}

func AuditLogs(items []model.AuditLog) error {
	return each("auditLogs", items, func(l model.AuditLog) string { return l.ID })
}

func Archives(items []model.Archive) error {
	return each("archives", items, func(a model.Archive) string { return a.ID })
}

func Appeals(items []model.Appeal) error {
	return each("appeals", items, func(a model.Appeal) string { return a.ID })
}

func Users(items []model.User) error {
	return each("users", items, func(u model.User) string { return u.ID })
}

// StoreData validates every non-nil collection of a (possibly partial)
// dataset. All failing collections are reported together.
func StoreData(d model.StoreData) error {
	var errs []error
	if d.Members != nil {
		errs = append(errs, Members(d.Members))
	}
	if d.Rules != nil {
		errs = append(errs, Rules(d.Rules))
	}
	if d.WarningRules != nil {
		errs = append(errs, WarningRules(d.WarningRules))
	}
	if d.Transactions != nil {
		errs = append(errs, Transactions(d.Transactions))
	}
	if d.AuditLogs != nil {
		errs = append(errs, AuditLogs(d.AuditLogs))
	}
	if d.Archives != nil {
		errs = append(errs, Archives(d.Archives))
	}
	if d.Users != nil {
		errs = append(errs, Users(d.Users))
	}
	if d.Appeals != nil {
		errs = append(errs, Appeals(d.Appeals))
	}
	return errors.Join(errs...)
}

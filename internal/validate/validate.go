package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"next-mission/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// MaxEmptyCritical 是职位记录允许的关键字段缺失数上限，达到 3 即拒绝。
const MaxEmptyCritical = 2

// Decision 是校验结果。
type Decision struct {
	Accepted bool
	Reason   string
}

func accept() Decision { return Decision{Accepted: true} }

func reject(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Check 按记录类型分派校验规则。
func Check(rec model.Record) Decision {
	switch r := rec.(type) {
	case *model.JobListing:
		return Job(r)
	case *model.MentorProfile:
		return Mentor(r)
	case *model.CommunityEvent:
		return Event(r)
	default:
		return reject("unsupported record type %T", rec)
	}
}

// Job 拒绝 7 个关键字段中缺失 3 个及以上的职位。
func Job(j *model.JobListing) Decision {
	missing := EmptyCriticalFields(j)
	if len(missing) > MaxEmptyCritical {
		return reject("too sparse: %d of 7 critical fields empty (%s)", len(missing), strings.Join(missing, ", "))
	}
	return accept()
}

// EmptyCriticalFields 返回职位记录中为空的关键字段名。
func EmptyCriticalFields(j *model.JobListing) []string {
	checks := []struct {
		name  string
		empty bool
	}{
		{"company", model.Blank(j.Company)},
		{"title", model.Blank(j.Title)},
		{"location", model.Blank(j.Location)},
		{"description", model.Blank(j.Description)},
		{"salary", j.Salary.Empty()},
		{"employment_type", model.Blank(j.EmploymentType)},
		{"work_mode", model.Blank(j.WorkMode)},
	}
	var missing []string
	for _, c := range checks {
		if c.empty {
			missing = append(missing, c.name)
		}
	}
	return missing
}

// Mentor 要求姓名、头衔、主页链接都非空；只含空白视为空，不依赖调用方先 Normalize。
func Mentor(m *model.MentorProfile) Decision {
	err := structValidator.Struct(m)
	if err == nil {
		return accept()
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return reject("validate mentor: %v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return reject("missing required fields: %s", strings.Join(fields, ", "))
}

// Event 不拒绝任何活动记录。
func Event(*model.CommunityEvent) Decision {
	return accept()
}

package governance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// structValidator checks the declarative shape constraints on definitions.
var structValidator = validator.New()

// Definition is the kind-specific parameter document of a policy. Each
// policy kind has exactly one definition variant; the pairing is checked at
// construction time so the evaluator never inspects raw JSON.
type Definition interface {
	// Kind returns the policy kind this definition belongs to.
	Kind() PolicyKind

	// ConfiguredAction returns the action taken when the policy matches.
	ConfiguredAction() PolicyAction

	// Validate checks the definition's shape and semantic constraints.
	Validate() error
}

// EnvironmentRestrictionDef forbids cloning resources of the listed kinds.
type EnvironmentRestrictionDef struct {
	Action          PolicyAction `json:"action" validate:"required"`
	RestrictedKinds []string     `json:"restricted_kinds" validate:"required,min=1,dive,required"`
}

func (d *EnvironmentRestrictionDef) Kind() PolicyKind               { return KindEnvironmentRestriction }
func (d *EnvironmentRestrictionDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *EnvironmentRestrictionDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	return validateAction(d.Action)
}

// UserQuotaDef caps the number of live clones a single actor may hold.
type UserQuotaDef struct {
	Action       PolicyAction `json:"action" validate:"required"`
	MaxResources int          `json:"max_resources" validate:"required,min=1"`
}

func (d *UserQuotaDef) Kind() PolicyKind               { return KindUserQuota }
func (d *UserQuotaDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *UserQuotaDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	return validateAction(d.Action)
}

// TimeRestrictionDef confines clone creation to an allowed hour window
// [StartHour, EndHour) on the allowed weekdays.
type TimeRestrictionDef struct {
	Action          PolicyAction   `json:"action" validate:"required"`
	StartHour       int            `json:"start_hour" validate:"min=0,max=23"`
	EndHour         int            `json:"end_hour" validate:"min=1,max=24"`
	AllowedWeekdays []time.Weekday `json:"allowed_weekdays" validate:"required,min=1,dive,min=0,max=6"`
}

func (d *TimeRestrictionDef) Kind() PolicyKind               { return KindTimeRestriction }
func (d *TimeRestrictionDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *TimeRestrictionDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	if d.EndHour <= d.StartHour {
		return fmt.Errorf("end_hour %d must be greater than start_hour %d", d.EndHour, d.StartHour)
	}
	return validateAction(d.Action)
}

// AllowsWeekday reports whether the given weekday is in the allowed set.
func (d *TimeRestrictionDef) AllowsWeekday(day time.Weekday) bool {
	for _, allowed := range d.AllowedWeekdays {
		if allowed == day {
			return true
		}
	}
	return false
}

// SensitiveDataDef flags clones whose source schema contains any of the
// restricted schema names (case-insensitive substring match).
type SensitiveDataDef struct {
	Action            PolicyAction `json:"action" validate:"required"`
	RestrictedSchemas []string     `json:"restricted_schemas" validate:"required,min=1,dive,required"`
}

func (d *SensitiveDataDef) Kind() PolicyKind               { return KindSensitiveData }
func (d *SensitiveDataDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *SensitiveDataDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	return validateAction(d.Action)
}

// MatchedSchema returns the first restricted schema contained in the source
// schema name, or "" if none match.
func (d *SensitiveDataDef) MatchedSchema(sourceSchema string) string {
	lower := strings.ToLower(sourceSchema)
	for _, restricted := range d.RestrictedSchemas {
		if restricted != "" && strings.Contains(lower, strings.ToLower(restricted)) {
			return restricted
		}
	}
	return ""
}

// MaxAgeDef flags clones older than the configured number of days. The kind
// is evaluated retrospectively by the compliance scanner, so it can only
// flag: a BLOCK or REQUIRE_APPROVAL action is rejected at construction.
type MaxAgeDef struct {
	Action     PolicyAction `json:"action" validate:"required"`
	MaxAgeDays int          `json:"max_age_days" validate:"required,min=1"`
}

func (d *MaxAgeDef) Kind() PolicyKind               { return KindMaxAge }
func (d *MaxAgeDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *MaxAgeDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	if err := validateAction(d.Action); err != nil {
		return err
	}
	if d.Action != ActionLog {
		return fmt.Errorf("action %s is not allowed for %s policies: age findings cannot block a past operation", d.Action, KindMaxAge)
	}
	return nil
}

// RestrictedSourceDef forbids cloning from the listed source objects
// (case-insensitive exact match on the source name).
type RestrictedSourceDef struct {
	Action            PolicyAction `json:"action" validate:"required"`
	RestrictedSources []string     `json:"restricted_sources" validate:"required,min=1,dive,required"`
}

func (d *RestrictedSourceDef) Kind() PolicyKind               { return KindRestrictedSource }
func (d *RestrictedSourceDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *RestrictedSourceDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	return validateAction(d.Action)
}

// Matches reports whether the given source name is restricted.
func (d *RestrictedSourceDef) Matches(sourceName string) bool {
	for _, restricted := range d.RestrictedSources {
		if strings.EqualFold(restricted, sourceName) {
			return true
		}
	}
	return false
}

// DataClassificationDef forbids cloning sources carrying any of the listed
// classification tags.
type DataClassificationDef struct {
	Action                 PolicyAction `json:"action" validate:"required"`
	BlockedClassifications []string     `json:"blocked_classifications" validate:"required,min=1,dive,required"`
}

func (d *DataClassificationDef) Kind() PolicyKind               { return KindDataClassification }
func (d *DataClassificationDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *DataClassificationDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	return validateAction(d.Action)
}

// Matches reports whether the given classification tag is blocked.
func (d *DataClassificationDef) Matches(classification string) bool {
	for _, blocked := range d.BlockedClassifications {
		if strings.EqualFold(blocked, classification) {
			return true
		}
	}
	return false
}

// ApprovalRequiredDef demands that the acting role is one of the approver
// roles before the operation may proceed unchallenged.
type ApprovalRequiredDef struct {
	Action        PolicyAction `json:"action" validate:"required"`
	ApproverRoles []string     `json:"approver_roles" validate:"required,min=1,dive,required"`
}

func (d *ApprovalRequiredDef) Kind() PolicyKind               { return KindApprovalRequired }
func (d *ApprovalRequiredDef) ConfiguredAction() PolicyAction { return d.Action }

func (d *ApprovalRequiredDef) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return err
	}
	return validateAction(d.Action)
}

// RoleApproved reports whether the given role may act without approval.
func (d *ApprovalRequiredDef) RoleApproved(role string) bool {
	for _, approver := range d.ApproverRoles {
		if strings.EqualFold(approver, role) {
			return true
		}
	}
	return false
}

func validateAction(action PolicyAction) error {
	if !action.Valid() {
		return fmt.Errorf("unknown policy action: %q", action)
	}
	return nil
}

// newDefinition returns the empty definition variant for a kind.
func newDefinition(kind PolicyKind) (Definition, error) {
	switch kind {
	case KindEnvironmentRestriction:
		return &EnvironmentRestrictionDef{}, nil
	case KindUserQuota:
		return &UserQuotaDef{}, nil
	case KindTimeRestriction:
		return &TimeRestrictionDef{}, nil
	case KindSensitiveData:
		return &SensitiveDataDef{}, nil
	case KindMaxAge:
		return &MaxAgeDef{}, nil
	case KindRestrictedSource:
		return &RestrictedSourceDef{}, nil
	case KindDataClassification:
		return &DataClassificationDef{}, nil
	case KindApprovalRequired:
		return &ApprovalRequiredDef{}, nil
	default:
		return nil, fmt.Errorf("unknown policy kind: %q", kind)
	}
}

// ParseDefinition decodes and validates the JSON parameter document for a
// policy kind. Unknown fields are rejected so a mistyped parameter cannot
// silently disable a rule.
func ParseDefinition(kind PolicyKind, raw []byte) (Definition, error) {
	def, err := newDefinition(kind)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(def); err != nil {
		return nil, fmt.Errorf("failed to decode %s definition: %w", kind, err)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s definition: %w", kind, err)
	}

	return def, nil
}

// MarshalDefinition encodes a definition for storage.
func MarshalDefinition(def Definition) ([]byte, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s definition: %w", def.Kind(), err)
	}
	return data, nil
}

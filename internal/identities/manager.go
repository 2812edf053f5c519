package identities

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"candy.skin/yggdrasil/internal/db"
	"candy.skin/yggdrasil/internal/security"
)

type IdentitiesRepository interface {
	FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error)
	SaveIdentity(ctx context.Context, identity *db.Identity) error
	RemoveIdentityByUuid(ctx context.Context, uuid string) error
}

func NewManager(repo IdentitiesRepository) *Manager {
	return &Manager{
		IdentitiesRepository: repo,
		identityValidator:    createIdentityValidator(),
	}
}

type Manager struct {
	IdentitiesRepository
	identityValidator *validator.Validate
}

// PersistIdentity stores the identity, hashing the given plain password.
// An empty password is allowed only when the identity already exists,
// in which case the stored hash is carried over
func (m *Manager) PersistIdentity(ctx context.Context, identity *db.Identity, password string) error {
	validationErrors := m.identityValidator.Struct(identity)
	if validationErrors != nil {
		return mapValidationErrorsToCommonError(validationErrors.(validator.ValidationErrors))
	}

	identity.Uuid = db.NormalizeUuid(identity.Uuid)
	if identity.Skin == "" || isClassicModel(identity.SkinModel) {
		identity.SkinModel = ""
	}

	if password != "" {
		hash, err := security.HashPassword(password)
		if err != nil {
			return err
		}

		identity.PasswordHash = hash
	} else {
		existing, err := m.IdentitiesRepository.FindIdentityByUuid(ctx, identity.Uuid)
		if err != nil {
			return err
		}

		if existing == nil {
			return &ValidationError{map[string][]string{
				"Password": {"Password is a required field"},
			}}
		}

		identity.PasswordHash = existing.PasswordHash
	}

	return m.IdentitiesRepository.SaveIdentity(ctx, identity)
}

func (m *Manager) RemoveIdentityByUuid(ctx context.Context, uuid string) error {
	return m.IdentitiesRepository.RemoveIdentityByUuid(ctx, db.NormalizeUuid(uuid))
}

type ValidationError struct {
	Errors map[string][]string
}

func (e *ValidationError) Error() string {
	return "The identity is invalid and cannot be persisted"
}

func createIdentityValidator() *validator.Validate {
	validate := validator.New()

	regexUuidAny := regexp.MustCompile("(?i)^[a-f0-9]{8}-?[a-f0-9]{4}-?[a-f0-9]{4}-?[a-f0-9]{4}-?[a-f0-9]{12}$")
	_ = validate.RegisterValidation("uuid_any", func(fl validator.FieldLevel) bool {
		return regexUuidAny.MatchString(fl.Field().String())
	})

	regexUsername := regexp.MustCompile(`^[-\w.!$%^&*()\[\]:;]+$`)
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return regexUsername.MatchString(fl.Field().String())
	})

	regexAssetRef := regexp.MustCompile(`^[\w.-]+$`)
	_ = validate.RegisterValidation("asset_ref", func(fl validator.FieldLevel) bool {
		return regexAssetRef.MatchString(fl.Field().String())
	})

	validate.RegisterStructValidationMapRules(map[string]string{
		"Username":  "required,username,max=21",
		"Uuid":      "required,uuid_any",
		"Skin":      "omitempty,asset_ref,max=255",
		"SkinModel": "omitempty,oneof=steve alex classic default slim",
		"Cape":      "omitempty,asset_ref,max=255",
	}, db.Identity{})

	return validate
}

func mapValidationErrorsToCommonError(err validator.ValidationErrors) *ValidationError {
	resultErr := &ValidationError{make(map[string][]string)}
	for _, e := range err {
		// Manager can return multiple errors per field, but the current validation implementation
		// returns only one error per field
		resultErr.Errors[e.Field()] = []string{formatValidationErr(e)}
	}

	return resultErr
}

// The go-playground/validator lib already contains tools for translated errors output.
// However, the implementation is very heavy and becomes even more so when you need to add messages for custom validators.
// So for simplicity, validation error formatting is kept in this simple implementation
func formatValidationErr(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is a required field", err.Field())
	case "username":
		return fmt.Sprintf("%s must be a valid username", err.Field())
	case "max":
		return fmt.Sprintf("%s must be a maximum of %s in length", err.Field(), err.Param())
	case "uuid_any":
		return fmt.Sprintf("%s must be a valid UUID", err.Field())
	case "asset_ref":
		return fmt.Sprintf("%s must be a valid texture file reference", err.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
	default:
		return fmt.Sprintf(`Field validation for "%s" failed on the "%s" tag`, err.Field(), err.Tag())
	}
}

// All the values on the left mean the default model in one or another era of the protocol
func isClassicModel(model string) bool {
	return model == "" || model == "classic" || model == "default" || model == "steve"
}

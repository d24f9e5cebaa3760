package utils

// Minimal server-side i18n for fixed keys.
// UI strings live in the frontend; the server only localizes what it renders itself.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":             "ok",
		"error.invalid":         "Some fields need attention.",
		"error.unauthorized":    "Please sign in.",
		"error.forbidden":       "You do not have access to this resource.",
		"error.not_found":       "Not found.",
		"error.conflict":        "That request conflicts with the current state.",
		"error.internal":        "Something went wrong. Please try again.",
		"registration.complete": "Your account has been created.",
		"segment.diamond":       "Priority investor",
		"segment.hot":           "Strong fit",
		"segment.warm":          "Potential fit",
		"segment.cold":          "Not a fit today",
	},
	"es": {
		"health.ok":             "bien",
		"error.invalid":         "Algunos campos requieren atención.",
		"error.unauthorized":    "Por favor inicie sesión.",
		"error.forbidden":       "No tiene acceso a este recurso.",
		"error.not_found":       "No encontrado.",
		"error.conflict":        "La solicitud entra en conflicto con el estado actual.",
		"error.internal":        "Algo salió mal. Inténtelo de nuevo.",
		"registration.complete": "Su cuenta ha sido creada.",
		"segment.diamond":       "Inversionista prioritario",
		"segment.hot":           "Muy buen perfil",
		"segment.warm":          "Perfil potencial",
		"segment.cold":          "Sin perfil por ahora",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

package identity

import (
	"context"
	"net/http"
	"strings"

	"servechat/internal/domain"
)

// Variantes en orden de preferencia. El primer valor no vacio gana.
var (
	emailHeaders = []string{"X-Forwarded-Email"}
	tokenHeaders = []string{"X-Forwarded-Access-Token"}
	userHeaders  = []string{"X-Forwarded-User", "X-Forwarded-Preferred-Username"}

	emailEnvVars = []string{
		"HTTP_X_FORWARDED_EMAIL",
		"X_FORWARDED_EMAIL",
		"DATABRICKS_FORWARD_EMAIL",
		"FORWARDED_EMAIL",
		"USER_EMAIL",
		"DB_USER_EMAIL",
		"DATABRICKS_USER_EMAIL",
	}
	tokenEnvVars = []string{
		"HTTP_X_FORWARDED_ACCESS_TOKEN",
		"X_FORWARDED_ACCESS_TOKEN",
		"DATABRICKS_FORWARD_ACCESS_TOKEN",
		"FORWARDED_ACCESS_TOKEN",
		"ACCESS_TOKEN",
	}
	userEnvVars = []string{
		"HTTP_X_FORWARDED_USER",
		"X_FORWARDED_USER",
		"DATABRICKS_FORWARD_USER",
		"FORWARDED_USER",
		"USER_ID",
		"USERNAME",
	}
)

// LookupEnv tiene la firma de os.LookupEnv para poder inyectarlo en tests.
type LookupEnv func(key string) (string, bool)

// Resolve arma la identidad a partir de headers del proxy y, como fallback, del entorno.
// sqlUser puede venir vacio cuando no hay warehouse.
func Resolve(h http.Header, lookupEnv LookupEnv, sqlUser string, runAsUser bool) domain.Identity {
	id := domain.Identity{
		Email:         firstValue(h, emailHeaders, lookupEnv, emailEnvVars),
		AccessToken:   firstValue(h, tokenHeaders, lookupEnv, tokenEnvVars),
		ForwardedUser: firstValue(h, userHeaders, lookupEnv, userEnvVars),
		SQLUser:       strings.TrimSpace(sqlUser),
	}
	if id.SQLUser == domain.UnknownUserID {
		id.SQLUser = ""
	}
	id.UserID = primaryUserID(id)
	id.AuthMode = AuthMode(runAsUser, id)
	return id
}

// AuthMode devuelve USER solo si se pidio correr SQL como usuario y hay token.
func AuthMode(runAsUser bool, id domain.Identity) string {
	if runAsUser && id.HasToken() {
		return domain.AuthModeUser
	}
	return domain.AuthModeApp
}

func primaryUserID(id domain.Identity) string {
	for _, candidate := range []string{id.Email, id.SQLUser, id.ForwardedUser} {
		if candidate != "" {
			return candidate
		}
	}
	return domain.UnknownUserID
}

func firstValue(h http.Header, headers []string, lookupEnv LookupEnv, envVars []string) string {
	for _, name := range headers {
		if h == nil {
			break
		}
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	if lookupEnv == nil {
		return ""
	}
	for _, key := range envVars {
		if v, ok := lookupEnv(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Validate devuelve recomendaciones sobre la configuracion de identidad.
func Validate(id domain.Identity, persistenceEnabled, runAsUser bool) []string {
	var recs []string
	if id.Email == "" {
		recs = append(recs, "Email not detected. Ensure X-Forwarded-Email header is set by your proxy/gateway.")
	}
	if !persistenceEnabled {
		recs = append(recs, "SQL logging disabled. Set DATABASE_URL to enable conversation history and analytics.")
	}
	if runAsUser && id.AuthMode == domain.AuthModeApp {
		recs = append(recs, "RUN_SQL_AS_USER is enabled but no forwarded token available. Running in APP mode.")
	}
	return recs
}

type ctxKey struct{}

// WithContext guarda la identidad en el contexto del request.
func WithContext(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext recupera la identidad; ok es false si nunca se resolvio.
func FromContext(ctx context.Context) (domain.Identity, bool) {
	if ctx == nil {
		return domain.Identity{}, false
	}
	id, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return id, ok
}

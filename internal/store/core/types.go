package core

import "time"

// UserStatus es el estado lógico de la cuenta en el directorio central.
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserInvited UserStatus = "invited"
	UserBlocked UserStatus = "blocked"
)

// User es el registro de identidad del directorio central.
// Las conexiones a providers viven en tablas propias (ver Connection).
type User struct {
	ID           string
	Email        string
	Status       UserStatus
	PasswordHash string
	FirstName    string
	LastName     string
	AvatarURL    string
	Phone        string
	CreatedTime  time.Time
	UpdatedTime  time.Time
}

// Connection vincula un usuario con un provider. Como máximo existe una
// por par (user, provider); los approves posteriores solo agregan Meta.
type Connection struct {
	UserID       string
	ProviderID   string
	ProviderName string
	Roles        []string
	CreatedTime  time.Time
	UpdatedTime  time.Time
}

// ConnectionMeta es un registro de auditoría inmutable, append-only.
type ConnectionMeta struct {
	IP          string
	UserAgent   string
	CreatedTime time.Time
}

// Provider es un sitio partner que delega el login en el broker.
type Provider struct {
	ID               string
	Name             string
	Slug             string
	Owner            ProviderOwner
	State            bool
	IsLoginEnabled   bool
	LoginRedirectURL string
	DefaultRoles     []string
	CreatedTime      time.Time
	UpdatedTime      time.Time
}

// ProviderOwner es un snapshot desnormalizado del dueño del provider.
type ProviderOwner struct {
	ID    string
	Name  string
	Email string
}

// Fingerprint es un secreto opaco con el que una integración del provider
// se identifica en el callback. Secret es único a nivel global.
type Fingerprint struct {
	Name        string
	Domain      string
	Secret      string
	UpdatedTime time.Time
}

package config

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type StoreConfig interface {
	GetStore() string
	GetSQLiteDSN() string
	GetPostgresURL() string
}

type Store struct {
	Kind        string `env:"STORE" envDefault:"sqlite"`
	SQLiteDSN   string `env:"SQLITE_DSN" envDefault:"file:./data/accounts.db?_pragma=busy_timeout(5000)"`
	PostgresURL string `env:"POSTGRES_URL"`
}

var _ StoreConfig = Store{}

func (s Store) GetStore() string {
	if s.Kind == "" {
		return StoreMemory
	}
	return s.Kind
}

func (s Store) GetSQLiteDSN() string   { return s.SQLiteDSN }
func (s Store) GetPostgresURL() string { return s.PostgresURL }

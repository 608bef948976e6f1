package config

import "flag"

// Overrides are deployment settings registered as flags. Parsed with
// ff.WithEnvVars they are also read from the environment, e.g.
// -vapid-public-key from VAPID_PUBLIC_KEY. Only flags that were set are
// applied.
type Overrides struct {
	fs *flag.FlagSet

	subject         *string
	publicKey       *string
	privateKey      *string
	environment     *string
	backend         *string
	databaseDriver  *string
	databaseDSN     *string
	redisAddr       *string
	redisPassword   *string
	redisDB         *int
	scheduleEnabled *bool
}

// RegisterFlags declares the overridable settings on fs.
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	return &Overrides{
		fs:              fs,
		subject:         fs.String("vapid-subject", "", "VAPID subject, a mailto: or https: URL"),
		publicKey:       fs.String("vapid-public-key", "", "base64url VAPID public key"),
		privateKey:      fs.String("vapid-private-key", "", "base64url VAPID private key"),
		environment:     fs.String("environment", "", "development or production"),
		backend:         fs.String("storage-backend", "", "subscription store: database, bolt or redis"),
		databaseDriver:  fs.String("database-driver", "", "postgres or sqlite, inferred from the DSN when empty"),
		databaseDSN:     fs.String("database-dsn", "", "database connection string"),
		redisAddr:       fs.String("redis-addr", "", "redis host:port"),
		redisPassword:   fs.String("redis-password", "", "redis password"),
		redisDB:         fs.Int("redis-db", 0, "redis database number"),
		scheduleEnabled: fs.Bool("schedule-enabled", true, "run the daily trivia broadcast"),
	}
}

func (o *Overrides) apply(c *Config) {
	if o == nil {
		return
	}
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "vapid-subject":
			c.Push.Subject = *o.subject
		case "vapid-public-key":
			c.Push.PublicKey = *o.publicKey
		case "vapid-private-key":
			c.Push.PrivateKey = *o.privateKey
		case "environment":
			c.Server.Environment = *o.environment
		case "storage-backend":
			c.Storage.Backend = *o.backend
		case "database-driver":
			c.Database.Driver = *o.databaseDriver
		case "database-dsn":
			c.Database.DSN = *o.databaseDSN
		case "redis-addr":
			c.Redis.Addr = *o.redisAddr
		case "redis-password":
			c.Redis.Password = *o.redisPassword
		case "redis-db":
			c.Redis.DB = *o.redisDB
		case "schedule-enabled":
			enabled := *o.scheduleEnabled
			c.Schedule.EnabledFlag = &enabled
		}
	})
}

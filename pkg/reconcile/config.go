package reconcile

// Config controls tenant scans.
type Config struct {
	PageSize    int `env:"RECONCILE_PAGE_SIZE" envDefault:"100"`
	Concurrency int `env:"RECONCILE_CONCURRENCY" envDefault:"4"`
}

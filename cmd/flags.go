package cmd

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-format", "json", "log format")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

func addressFlag(v *viper.Viper) string {
	return v.GetString("address")
}

func addAddressFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("address", ":8080", "Address to bind to (host:port)")
	_ = v.BindPFlag("address", flags.Lookup("address"))
	_ = v.BindEnv("address", "CATALOG_SERVER_ADDRESS")
}

func eventsAddressFlag(v *viper.Viper) string {
	return v.GetString("events.address")
}

func addEventsAddressFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("events-address", ":8081", "Address to stream change events on, empty to disable")
	_ = v.BindPFlag("events.address", flags.Lookup("events-address"))
	_ = v.BindEnv("events.address", "CATALOG_SERVER_EVENTS_ADDRESS")
}

func basePathFlag(v *viper.Viper) string {
	return v.GetString("base_path")
}

func addBasePathFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("base-path", "/catalogserver", "Base path to export the webserver on")
	_ = v.BindPFlag("base_path", flags.Lookup("base-path"))
	_ = v.BindEnv("base_path", "CATALOG_SERVER_BASE_PATH")
}

func preloadedFlag(v *viper.Viper) string {
	return v.GetString("preloaded")
}

func addPreloadedFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("preloaded", "", "Catalog snapshot file used when there is no persisted snapshot")
	_ = v.BindPFlag("preloaded", flags.Lookup("preloaded"))
	_ = v.BindEnv("preloaded", "CATALOG_SERVER_PRELOADED")
}

func loadRetryIntervalFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("load.retry_interval")
}

func addLoadRetryIntervalFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("load-retry-interval", 10*time.Second, "Wait between attempts to load the catalog on startup")
	_ = v.BindPFlag("load.retry_interval", flags.Lookup("load-retry-interval"))
	_ = v.BindEnv("load.retry_interval", "CATALOG_SERVER_LOAD_RETRY_INTERVAL")
}

func historyDirFlag(v *viper.Viper) string {
	return v.GetString("history.dir")
}

func addHistoryDirFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("history-dir", "/var/lib/catalogserver", "Where to put my data")
	_ = v.BindPFlag("history.dir", flags.Lookup("history-dir"))
	_ = v.BindEnv("history.dir", "CATALOG_SERVER_HISTORY_DIR")
}

func historyLimitFlag(v *viper.Viper) int {
	return v.GetInt("history.limit")
}

func addHistoryLimitFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("history-limit", 2, "Number of history records to keep")
	_ = v.BindPFlag("history.limit", flags.Lookup("history-limit"))
	_ = v.BindEnv("history.limit", "CATALOG_SERVER_HISTORY_LIMIT")
}

func storageTypeFlag(v *viper.Viper) string {
	return v.GetString("storage.type")
}

func addStorageTypeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-type", "filesystem", "Snapshot storage: filesystem or blob")
	_ = v.BindPFlag("storage.type", flags.Lookup("storage-type"))
	_ = v.BindEnv("storage.type", "CATALOG_SERVER_STORAGE_TYPE")
}

func storageBlobBucketFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.bucket")
}

func addStorageBlobBucketFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-bucket", "", "Bucket url, e.g. gs://bucket, s3://bucket or azblob://container")
	_ = v.BindPFlag("storage.blob.bucket", flags.Lookup("storage-blob-bucket"))
	_ = v.BindEnv("storage.blob.bucket", "CATALOG_SERVER_STORAGE_BLOB_BUCKET")
}

func storageBlobPrefixFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.prefix")
}

func addStorageBlobPrefixFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-prefix", "", "Key prefix inside the bucket")
	_ = v.BindPFlag("storage.blob.prefix", flags.Lookup("storage-blob-prefix"))
	_ = v.BindEnv("storage.blob.prefix", "CATALOG_SERVER_STORAGE_BLOB_PREFIX")
}

func repositoryTimeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("repository.timeout")
}

func addRepositoryTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("repository-timeout", 30*time.Second, "Timeout for fetching the catalog document and example sources")
	_ = v.BindPFlag("repository.timeout", flags.Lookup("repository-timeout"))
	_ = v.BindEnv("repository.timeout", "CATALOG_SERVER_REPOSITORY_TIMEOUT")
}

func fetchMaxSizeFlag(v *viper.Viper) int64 {
	return v.GetInt64("fetch.max_size")
}

func addFetchMaxSizeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int64("fetch-max-size", 8<<20, "Maximum size in bytes of a fetched example source")
	_ = v.BindPFlag("fetch.max_size", flags.Lookup("fetch-max-size"))
	_ = v.BindEnv("fetch.max_size", "CATALOG_SERVER_FETCH_MAX_SIZE")
}

func gzipLevelFlag(v *viper.Viper) int {
	return v.GetInt("gzip.level")
}

func addGzipLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("gzip-level", 6, "Compression level of http replies")
	_ = v.BindPFlag("gzip.level", flags.Lookup("gzip-level"))
	_ = v.BindEnv("gzip.level", "CATALOG_SERVER_GZIP_LEVEL")
}

func gracefulPeriodFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("graceful_period")
}

func addGracefulPeriodFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("graceful-period", 0, "Wait before shutting down the services")
	_ = v.BindPFlag("graceful_period", flags.Lookup("graceful-period"))
	_ = v.BindEnv("graceful_period", "CATALOG_SERVER_GRACEFUL_PERIOD")
}

func serviceHealthzEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.healthz.enabled")
}

func addServiceHealthzEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-healthz-enabled", false, "Enable healthz service")
	_ = v.BindPFlag("service.healthz.enabled", flags.Lookup("service-healthz-enabled"))
}

func servicePrometheusEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.prometheus.enabled")
}

func addServicePrometheusEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-prometheus-enabled", false, "Enable prometheus service")
	_ = v.BindPFlag("service.prometheus.enabled", flags.Lookup("service-prometheus-enabled"))
}

func servicePProfEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.pprof.enabled")
}

func addServicePProfEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-pprof-enabled", false, "Enable pprof service")
	_ = v.BindPFlag("service.pprof.enabled", flags.Lookup("service-pprof-enabled"))
}

func otelEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("otel.enabled")
}

func addOtelEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("otel-enabled", false, "Enable otel service")
	_ = v.BindPFlag("otel.enabled", flags.Lookup("otel-enabled"))
	_ = v.BindEnv("otel.enabled", "OTEL_ENABLED")
}

func serverFlag(v *viper.Viper) string {
	return v.GetString("server")
}

func addServerFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("server", "http://localhost:8080/catalogserver", "Catalog server api url")
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindEnv("server", "CATALOG_SERVER_URL")
}

func outputFlag(v *viper.Viper) string {
	return v.GetString("output")
}

func addOutputFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.StringP("output", "o", "yaml", "Output format: yaml or json")
	_ = v.BindPFlag("output", flags.Lookup("output"))
	_ = v.BindEnv("output", "CATALOG_SERVER_OUTPUT")
}

func timeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("timeout")
}

func addTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("timeout", 30*time.Second, "Timeout for calls to the server")
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindEnv("timeout", "CATALOG_SERVER_TIMEOUT")
}

func displayNameFlag(v *viper.Viper) string {
	return v.GetString("display_name")
}

func addDisplayNameFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("display-name", "", "Overrides the derived display name")
	_ = v.BindPFlag("display_name", flags.Lookup("display-name"))
}

func remoteFetchFlag(v *viper.Viper) bool {
	return v.GetBool("remote_fetch")
}

func addRemoteFetchFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("remote-fetch", false, "Let the server fetch an http(s) source instead of uploading its content")
	_ = v.BindPFlag("remote_fetch", flags.Lookup("remote-fetch"))
}

package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Transport       Category = "Transport"
	Playback        Category = "Playback"
	Hub             Category = "Hub"
	Catalog         Category = "Catalog"
	Membership      Category = "Membership"
	RabbitMQ        Category = "RabbitMQ"
	Mongo           Category = "Mongo"
	Redis           Category = "Redis"
	Validation      Category = "Validation"
	Prometheus      Category = "Prometheus"
	RequestResponse Category = "RequestResponse"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Transport
	Connect   SubCategory = "Connect"
	Reconnect SubCategory = "Reconnect"
	Broadcast SubCategory = "Broadcast"

	// Playback
	TrackSwitch SubCategory = "TrackSwitch"
	Resync      SubCategory = "Resync"
	Readiness   SubCategory = "Readiness"
	SongEnd     SubCategory = "SongEnd"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	RoomID       ExtraKey = "RoomId"
	MemberName   ExtraKey = "Member"
	SongURL      ExtraKey = "SongUrl"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
)

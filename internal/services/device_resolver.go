package services

import (
	"log/slog"
	"net"
	"strings"

	"github.com/BradenHooton/authgate/internal/models"
	"github.com/oschwald/geoip2-golang"
)

// GeoLocator looks up the location of a public IP
type GeoLocator interface {
	Locate(ip net.IP) (country, city string, err error)
}

// MaxMindLocator reads a GeoLite2/GeoIP2 City database
type MaxMindLocator struct {
	db *geoip2.Reader
}

// NewMaxMindLocator opens the database at path
func NewMaxMindLocator(path string) (*MaxMindLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMindLocator{db: db}, nil
}

func (l *MaxMindLocator) Locate(ip net.IP) (string, string, error) {
	record, err := l.db.City(ip)
	if err != nil {
		return "", "", err
	}
	return record.Country.Names["en"], record.City.Names["en"], nil
}

func (l *MaxMindLocator) Close() error {
	return l.db.Close()
}

// HeuristicDeviceResolver classifies user agents by substring matching and
// optionally resolves location through a GeoLocator.
type HeuristicDeviceResolver struct {
	geo    GeoLocator
	logger *slog.Logger
}

// NewHeuristicDeviceResolver creates a resolver. geo may be nil, in which
// case only private addresses get a location.
func NewHeuristicDeviceResolver(geo GeoLocator, logger *slog.Logger) *HeuristicDeviceResolver {
	return &HeuristicDeviceResolver{geo: geo, logger: logger}
}

func (r *HeuristicDeviceResolver) Resolve(ip, userAgent string) (models.DeviceInfo, models.LocationInfo) {
	return ParseUserAgent(userAgent), r.locate(ip)
}

func (r *HeuristicDeviceResolver) locate(raw string) models.LocationInfo {
	ip := net.ParseIP(raw)
	if ip == nil {
		return models.LocationInfo{}
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return models.LocationInfo{Country: "Local Network", City: "Local"}
	}
	if r.geo == nil {
		return models.LocationInfo{}
	}

	country, city, err := r.geo.Locate(ip)
	if err != nil {
		r.logger.Debug("geoip lookup failed", slog.Any("error", err))
		return models.LocationInfo{}
	}
	return models.LocationInfo{Country: country, City: city}
}

// ParseUserAgent extracts device type, OS and browser family from a
// user agent string. Unknown parts are left empty.
func ParseUserAgent(ua string) models.DeviceInfo {
	if strings.TrimSpace(ua) == "" {
		return models.DeviceInfo{}
	}

	var info models.DeviceInfo

	// Order matters: Edge and Opera also advertise Chrome, Chrome advertises Safari.
	switch {
	case strings.Contains(ua, "Edg/") || strings.Contains(ua, "Edge/"):
		info.Browser = "Edge"
	case strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera"):
		info.Browser = "Opera"
	case strings.Contains(ua, "Firefox/") || strings.Contains(ua, "FxiOS/"):
		info.Browser = "Firefox"
	case strings.Contains(ua, "Chrome/") || strings.Contains(ua, "CriOS/"):
		info.Browser = "Chrome"
	case strings.Contains(ua, "Safari/"):
		info.Browser = "Safari"
	}

	// Android and iOS user agents also mention Linux and Mac OS X.
	switch {
	case strings.Contains(ua, "Android"):
		info.OS = "Android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iPod"):
		info.OS = "iOS"
	case strings.Contains(ua, "Windows NT"):
		info.OS = "Windows"
	case strings.Contains(ua, "Mac OS X") || strings.Contains(ua, "Macintosh"):
		info.OS = "macOS"
	case strings.Contains(ua, "CrOS"):
		info.OS = "ChromeOS"
	case strings.Contains(ua, "Linux"):
		info.OS = "Linux"
	}

	switch {
	case strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet") ||
		(strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile")):
		info.DeviceType = "Tablet"
	case strings.Contains(ua, "Mobile") || strings.Contains(ua, "iPhone"):
		info.DeviceType = "Mobile"
	default:
		info.DeviceType = "Desktop"
	}

	return info
}

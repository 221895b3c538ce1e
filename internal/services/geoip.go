package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/config"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

const unknownLocation = "Unknown"

// Location is the coarse geography attached to a click.
type Location struct {
	Country string
	City    string
	Region  string
	Lat     float64
	Lng     float64
}

func UnknownLocation() Location {
	return Location{Country: unknownLocation, City: unknownLocation, Region: unknownLocation}
}

type geoReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Metadata() maxminddb.Metadata
	Close() error
}

type GeoIPService struct {
	cfg       config.Config
	logger    *slog.Logger
	geoReader geoReader
	geoLock   sync.RWMutex
}

func NewGeoIPService(cfg config.Config, logger *slog.Logger) *GeoIPService {
	return &GeoIPService{
		cfg:    cfg,
		logger: logger,
	}
}

// Init opens the local database, downloading it first when credentials allow.
// Without a database every lookup answers Unknown.
func (s *GeoIPService) Init() {
	dbPath := s.cfg.MaxMindDBPath
	if dbPath == "" {
		return
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if s.cfg.MaxMindAccountID == "" || s.cfg.MaxMindLicenseKey == "" {
			s.logger.Warn("GeoIP: database missing and MaxMind credentials not set, lookups disabled")
			return
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			s.logger.Error("GeoIP: failed to create directory", "path", dbPath, "error", err)
			return
		}
		s.logger.Info("GeoIP: database missing, downloading")
		if err := s.updateGeoDB(); err != nil {
			s.logger.Error("GeoIP: initial download failed", "error", err)
			return
		}
	}

	s.reloadReader(dbPath)
}

func (s *GeoIPService) StartUpdater(ctx context.Context) {
	if s.cfg.MaxMindAccountID == "" {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info("GeoIP: running scheduled update")
			if err := s.updateGeoDB(); err != nil {
				s.logger.Error("GeoIP: update failed", "error", err)
				continue
			}
			s.reloadReader(s.cfg.MaxMindDBPath)
		case <-ctx.Done():
			s.logger.Info("GeoIP: updater stopping")
			return
		}
	}
}

func (s *GeoIPService) updateGeoDB() error {
	dbDir := filepath.Dir(s.cfg.MaxMindDBPath)
	confPath := filepath.Join(dbDir, "GeoIP.conf")

	content := fmt.Sprintf("AccountID %s\nLicenseKey %s\nEditionIDs %s\nDatabaseDirectory %s\n",
		s.cfg.MaxMindAccountID, s.cfg.MaxMindLicenseKey, s.cfg.MaxMindEditionIDs, dbDir)

	if err := os.WriteFile(confPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write GeoIP.conf: %w", err)
	}
	defer os.Remove(confPath)

	cmd := exec.Command("geoipupdate", "-v", "-f", confPath, "-d", dbDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("geoipupdate failed: %w, output: %s", err, string(output))
	}

	s.logger.Info("GeoIP: database updated")
	return nil
}

func (s *GeoIPService) reloadReader(path string) {
	reader, err := geoip2.Open(path)
	if err != nil {
		s.logger.Error("GeoIP: failed to open database", "path", path, "error", err)
		return
	}
	s.setReader(reader)
	s.logger.Info("GeoIP: loaded database", "epoch", reader.Metadata().BuildEpoch)
}

func (s *GeoIPService) setReader(r geoReader) {
	s.geoLock.Lock()
	defer s.geoLock.Unlock()

	if s.geoReader != nil {
		s.geoReader.Close()
	}
	s.geoReader = r
}

func (s *GeoIPService) Close() {
	s.setReader(nil)
}

// Lookup never fails; anything it cannot resolve stays Unknown.
func (s *GeoIPService) Lookup(ipStr string) Location {
	loc := UnknownLocation()

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return loc
	}
	if ip.IsLoopback() || ip.IsPrivate() {
		loc.Country, loc.Region, loc.City = "Localhost", "Local", "Local"
		return loc
	}

	s.geoLock.RLock()
	reader := s.geoReader
	s.geoLock.RUnlock()
	if reader == nil {
		return loc
	}

	record, err := reader.City(ip)
	if err != nil {
		s.logger.Debug("GeoIP: lookup error", "error", err)
		return loc
	}

	if name, ok := record.Country.Names["en"]; ok && name != "" {
		loc.Country = name
	} else if record.Country.IsoCode != "" {
		loc.Country = record.Country.IsoCode
	}
	if len(record.Subdivisions) > 0 {
		if name, ok := record.Subdivisions[0].Names["en"]; ok && name != "" {
			loc.Region = name
		}
	}
	if name, ok := record.City.Names["en"]; ok && name != "" {
		loc.City = name
	}
	loc.Lat = record.Location.Latitude
	loc.Lng = record.Location.Longitude

	return loc
}

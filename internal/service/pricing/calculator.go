package pricing

import (
	"math"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
)

// FallbackVehicle is used for unknown vehicle types. Estimates are advisory,
// so an unknown type is priced rather than rejected.
const FallbackVehicle = driver.VehicleTricycle

// Tariff is a per-vehicle fare model
type Tariff struct {
	BaseFare       float64 `json:"base_fare"`
	PerKm          float64 `json:"per_km"`
	FreeDistanceKm float64 `json:"free_distance_km"`
}

// Service handles fare calculation
type Service struct {
	config Config
}

// Config holds pricing configuration
type Config struct {
	Tariffs map[driver.VehicleType]Tariff

	// DefaultSpeedKmh and Speeds drive duration and ETA estimates.
	DefaultSpeedKmh float64
	Speeds          map[driver.VehicleType]float64
}

// FareBreakdown represents the breakdown of a fare
type FareBreakdown struct {
	VehicleType    driver.VehicleType `json:"vehicle_type"`
	BaseFare       float64            `json:"base_fare"`
	PerKm          float64            `json:"per_km"`
	FreeDistanceKm float64            `json:"free_distance_km"`
	DistanceKm     float64            `json:"distance_km"`
	ChargeableKm   int                `json:"chargeable_km"`
	DistanceFare   float64            `json:"distance_fare"`
	Total          float64            `json:"total"`
}

// DefaultTariffs is the tariff table used when none is configured.
func DefaultTariffs() map[driver.VehicleType]Tariff {
	return map[driver.VehicleType]Tariff{
		driver.VehicleTricycle:   {BaseFare: 50, PerKm: 10, FreeDistanceKm: 2},
		driver.VehicleMotorcycle: {BaseFare: 40, PerKm: 8, FreeDistanceKm: 2},
		driver.VehicleVan:        {BaseFare: 100, PerKm: 15, FreeDistanceKm: 2},
		driver.VehiclePrivateCar: {BaseFare: 120, PerKm: 18, FreeDistanceKm: 2},
	}
}

// NewService creates a new pricing service
func NewService(config Config) *Service {
	if len(config.Tariffs) == 0 {
		config.Tariffs = DefaultTariffs()
	}
	if config.DefaultSpeedKmh <= 0 {
		config.DefaultSpeedKmh = geo.DefaultAverageSpeedKmh
	}
	return &Service{config: config}
}

// TariffFor returns the tariff of a vehicle type, falling back to the
// tricycle tariff.
func (s *Service) TariffFor(vehicleType driver.VehicleType) (driver.VehicleType, Tariff) {
	if t, ok := s.config.Tariffs[vehicleType]; ok {
		return vehicleType, t
	}
	if t, ok := s.config.Tariffs[FallbackVehicle]; ok {
		return FallbackVehicle, t
	}
	return FallbackVehicle, DefaultTariffs()[FallbackVehicle]
}

// EstimateFare estimates the fare for a distance:
// base + ceil(max(0, distance - free distance)) * per km.
func (s *Service) EstimateFare(vehicleType driver.VehicleType, distanceKM float64) FareBreakdown {
	priced, tariff := s.TariffFor(vehicleType)

	if distanceKM < 0 || math.IsNaN(distanceKM) {
		distanceKM = 0
	}

	chargeable := int(math.Ceil(math.Max(0, distanceKM-tariff.FreeDistanceKm)))
	distanceFare := float64(chargeable) * tariff.PerKm

	return FareBreakdown{
		VehicleType:    priced,
		BaseFare:       tariff.BaseFare,
		PerKm:          tariff.PerKm,
		FreeDistanceKm: tariff.FreeDistanceKm,
		DistanceKm:     distanceKM,
		ChargeableKm:   chargeable,
		DistanceFare:   distanceFare,
		Total:          tariff.BaseFare + distanceFare,
	}
}

// SpeedFor returns the average speed assumed for a vehicle type
func (s *Service) SpeedFor(vehicleType driver.VehicleType) float64 {
	if v, ok := s.config.Speeds[vehicleType]; ok && v > 0 {
		return v
	}
	return s.config.DefaultSpeedKmh
}

// EstimateMinutes estimates travel time for a vehicle type over a distance
func (s *Service) EstimateMinutes(vehicleType driver.VehicleType, distanceKM float64) int {
	return geo.ETAMinutes(distanceKM, s.SpeedFor(vehicleType))
}

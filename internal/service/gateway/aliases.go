package gateway

import (
	"strings"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
)

// vehicleAliases maps the names riders and operators actually type to the
// canonical vehicle types. Keys are normalized with aliasKey.
var vehicleAliases = map[string]driver.VehicleType{
	"tricycle": driver.VehicleTricycle,
	"trike":    driver.VehicleTricycle,
	"tuktuk":   driver.VehicleTricycle,
	"pedicab":  driver.VehicleTricycle,

	"motorcycle": driver.VehicleMotorcycle,
	"motor":      driver.VehicleMotorcycle,
	"motorbike":  driver.VehicleMotorcycle,
	"habalhabal": driver.VehicleMotorcycle,
	"habal":      driver.VehicleMotorcycle,

	"van":      driver.VehicleVan,
	"jeepney":  driver.VehicleVan,
	"multicab": driver.VehicleVan,
	"shuttle":  driver.VehicleVan,

	"privatecar": driver.VehiclePrivateCar,
	"car":        driver.VehiclePrivateCar,
	"sedan":      driver.VehiclePrivateCar,
	"taxi":       driver.VehiclePrivateCar,
}

// aliasKey lowercases and strips separators so "Habal-Habal", "habal_habal"
// and "HABAL HABAL" compare equal.
func aliasKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LookupVehicleType resolves a vehicle name or alias.
func LookupVehicleType(s string) (driver.VehicleType, bool) {
	v, ok := vehicleAliases[aliasKey(s)]
	return v, ok
}

// NormalizeVehicleType resolves a vehicle name or alias, falling back to
// tricycle for anything unknown.
func NormalizeVehicleType(s string) driver.VehicleType {
	if v, ok := LookupVehicleType(s); ok {
		return v
	}
	return driver.VehicleTricycle
}

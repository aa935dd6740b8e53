package solar

import (
	"math"
	"time"

	"garden_irrigation/internal/models"
)

// ElevationFunc returns the sun elevation in degrees for a position and instant.
type ElevationFunc func(c models.Coordinates, t time.Time) float64

const (
	julianUnixEpoch = 2440587.5
	julianJ2000     = 2451545.0
	daysPerCentury  = 36525.0
)

// Elevation is the NOAA solar position approximation without atmospheric
// refraction. Accuracy is well under 0.1° for the current era.
func Elevation(c models.Coordinates, t time.Time) float64 {
	t = t.UTC()
	jd := float64(t.UnixNano())/float64(24*time.Hour) + julianUnixEpoch
	T := (jd - julianJ2000) / daysPerCentury

	l0 := math.Mod(280.46646+T*(36000.76983+T*0.0003032), 360)
	m := 357.52911 + T*(35999.05029-0.0001537*T)
	e := 0.016708634 - T*(0.000042037+0.0000001267*T)

	mr := rad(m)
	center := math.Sin(mr)*(1.914602-T*(0.004817+0.000014*T)) +
		math.Sin(2*mr)*(0.019993-0.000101*T) +
		math.Sin(3*mr)*0.000289
	omega := rad(125.04 - 1934.136*T)
	lambda := rad(l0 + center - 0.00569 - 0.00478*math.Sin(omega))

	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := rad(eps0 + 0.00256*math.Cos(omega))
	decl := math.Asin(math.Sin(eps) * math.Sin(lambda))

	y := math.Pow(math.Tan(eps/2), 2)
	l0r := rad(l0)
	eqTime := 4 * deg(y*math.Sin(2*l0r)-
		2*e*math.Sin(mr)+
		4*e*y*math.Sin(mr)*math.Cos(2*l0r)-
		0.5*y*y*math.Sin(4*l0r)-
		1.25*e*e*math.Sin(2*mr))

	minutes := float64(t.Hour()*60+t.Minute()) + (float64(t.Second())+float64(t.Nanosecond())/1e9)/60
	trueSolar := math.Mod(minutes+eqTime+4*c.Longitude, 1440)
	if trueSolar < 0 {
		trueSolar += 1440
	}
	hourAngle := rad(trueSolar/4 - 180)

	lat := rad(c.Latitude)
	cosZenith := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(hourAngle)
	cosZenith = math.Max(-1, math.Min(1, cosZenith))
	return 90 - deg(math.Acos(cosZenith))
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

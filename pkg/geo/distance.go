package geo

import (
	"math"

	"github.com/lintang-b-s/osmroadlength/pkg/util"
)

const (
	earthRadiusKM = 6371.0

	// WGS84
	wgs84A = 6378.137 // km
	wgs84F = 1 / 298.257223563
	wgs84B = wgs84A * (1 - wgs84F)

	vincentyMaxIter = 200
	vincentyEps     = 1e-12
)

func havFunction(angleRad float64) float64 {
	return (1 - math.Cos(angleRad)) / 2.0
}

// CalculateHaversineDistance. calculate haversine distance in km
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	latOne = util.DegreeToRadians(latOne)
	longOne = util.DegreeToRadians(longOne)
	latTwo = util.DegreeToRadians(latTwo)
	longTwo = util.DegreeToRadians(longTwo)

	a := havFunction(latOne-latTwo) + math.Cos(latOne)*math.Cos(latTwo)*havFunction(longOne-longTwo)
	c := 2.0 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

/*
CalculateVincentyDistance. inverse vincenty formula on the WGS84 ellipsoid, in km.
https://www.movable-type.co.uk/scripts/latlong-vincenty.html

returns ok=false when the iteration does not converge (nearly antipodal points).
*/
func CalculateVincentyDistance(latOne, longOne, latTwo, longTwo float64) (float64, bool) {
	if latOne == latTwo && longOne == longTwo {
		return 0, true
	}
	L := util.DegreeToRadians(longTwo - longOne)
	tanU1 := (1 - wgs84F) * math.Tan(util.DegreeToRadians(latOne))
	tanU2 := (1 - wgs84F) * math.Tan(util.DegreeToRadians(latTwo))
	cosU1 := 1 / math.Sqrt(1+tanU1*tanU1)
	sinU1 := tanU1 * cosU1
	cosU2 := 1 / math.Sqrt(1+tanU2*tanU2)
	sinU2 := tanU2 * cosU2

	lambda := L
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	converged := false
	for i := 0; i < vincentyMaxIter; i++ {
		sinLambda, cosLambda := math.Sin(lambda), math.Cos(lambda)
		x := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt((cosU2*sinLambda)*(cosU2*sinLambda) + x*x)
		if sinSigma == 0 {
			return 0, true // coincident
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		cos2SigmaM = 0
		if cosSqAlpha != 0 {
			// equatorial line: cosSqAlpha = 0
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		}
		C := wgs84F / 16 * cosSqAlpha * (4 + wgs84F*(4-3*cosSqAlpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) <= vincentyEps {
			converged = true
			break
		}
	}
	if !converged {
		return 0, false
	}

	uSq := cosSqAlpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return wgs84B * A * (sigma - deltaSigma), true
}

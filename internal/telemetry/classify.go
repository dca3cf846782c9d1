package telemetry

// Classification thresholds.
const (
	gasDangerPPM     = 1000
	gasWarningPPM    = 500
	distanceDangerCM = 20
	tempWarningC     = 40
)

// Classify maps a sample to a safety status. The first matching rule wins:
//
//	gas > 1000 or distance < 20  -> DANGER
//	gas > 500 or temperature > 40 -> WARNING
//	otherwise                     -> SAFE
//
// Absent channels never match. Humidity is not considered.
func Classify(s Sample) Status {
	switch {
	case s.Gas.Above(gasDangerPPM) || s.Distance.Below(distanceDangerCM):
		return StatusDanger
	case s.Gas.Above(gasWarningPPM) || s.Temperature.Above(tempWarningC):
		return StatusWarning
	default:
		return StatusSafe
	}
}

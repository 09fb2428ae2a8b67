package domain

// ConflictToleranceSteps is the allowed disagreement between the primary
// device and any other device before a conflict is reported.
const ConflictToleranceSteps = 500

// DeviceConflict records one non-primary device disagreeing with the primary
// beyond tolerance. Conflicts are reported, never applied.
type DeviceConflict struct {
	DeviceID      string     `json:"device_id"`
	DeviceType    DeviceType `json:"device_type"`
	ReportedSteps int        `json:"reported_steps"`
	Delta         int        `json:"delta"`
}

// ReconcileResult resolves multiple simultaneously reporting devices into one
// authoritative count.
type ReconcileResult struct {
	AuthoritativeSteps int              `json:"authoritative_steps"`
	PrimaryDeviceID    string           `json:"primary_device_id"`
	Conflicts          []DeviceConflict `json:"conflicts,omitempty"`
}

// ReconcileSteps picks the primary device's count as authoritative and
// reports a conflict for every other device whose count differs by more than
// ConflictToleranceSteps. The authoritative count is never altered by
// conflicting devices.
func ReconcileSteps(devices []DeviceProfile, perDeviceSteps map[string]int) (ReconcileResult, error) {
	var primary *DeviceProfile
	for i := range devices {
		if devices[i].IsPrimary {
			primary = &devices[i]
			break
		}
	}
	if primary == nil {
		return ReconcileResult{}, ErrNoPrimaryDevice
	}

	result := ReconcileResult{
		AuthoritativeSteps: perDeviceSteps[primary.DeviceID],
		PrimaryDeviceID:    primary.DeviceID,
	}

	for _, device := range devices {
		if device.DeviceID == primary.DeviceID {
			continue
		}
		reported, ok := perDeviceSteps[device.DeviceID]
		if !ok {
			continue
		}
		delta := reported - result.AuthoritativeSteps
		if delta < 0 {
			delta = -delta
		}
		if delta > ConflictToleranceSteps {
			result.Conflicts = append(result.Conflicts, DeviceConflict{
				DeviceID:      device.DeviceID,
				DeviceType:    device.DeviceType,
				ReportedSteps: reported,
				Delta:         delta,
			})
		}
	}

	return result, nil
}

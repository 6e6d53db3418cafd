package command

// AdminConfig enables the admin HTTP surface when Port is set.
type AdminConfig struct {
	Port uint16 `json:"port"`
}

package credstore

import "encoding/json"

type unlockCredentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

func encodeUnlockCredentials(c unlockCredentials) ([]byte, error) {
	return json.Marshal(c)
}

func decodeUnlockCredentials(blob []byte) (unlockCredentials, error) {
	var c unlockCredentials
	err := json.Unmarshal(blob, &c)
	return c, err
}

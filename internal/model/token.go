package model

type Token struct {
	ID          string `json:"id__"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Expiry      int64  `json:"expiry"`
	Token       string `json:"token"`
	Ctime       int64  `json:"ctime"`
}

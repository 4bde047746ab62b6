package accounts

import (
	"sort"
	"time"
)

// Credential is the stored login secret of one user.
type Credential struct {
	PasswordHash     string `json:"passwordHash"`
	CreatedAtSeconds int64  `json:"createdAt"`
}

type usersDocument struct {
	Users map[string]Credential `json:"users"`
}

func (d *usersDocument) lookup(username string) (Credential, bool) {
	credential, ok := d.Users[username]
	return credential, ok
}

func (d *usersDocument) put(username string, hash []byte, createdAt time.Time) {
	if d.Users == nil {
		d.Users = make(map[string]Credential)
	}
	d.Users[username] = Credential{PasswordHash: string(hash), CreatedAtSeconds: createdAt.UTC().Unix()}
}

func (d *usersDocument) names() []string {
	names := make([]string, 0, len(d.Users))
	for name := range d.Users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

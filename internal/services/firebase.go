package services

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// FirebaseClients holds the Admin SDK clients the service uses.
type FirebaseClients struct {
	Auth     *auth.Client
	Database *db.Client
}

// InitFirebase initializes the Firebase Admin SDK. The database client is
// only created when a database URL is given.
func InitFirebase(ctx context.Context, credPath, databaseURL string) (*FirebaseClients, error) {
	opt := option.WithCredentialsFile(credPath)

	var conf *firebase.Config
	if databaseURL != "" {
		conf = &firebase.Config{DatabaseURL: databaseURL}
	}
	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, err
	}

	clients := &FirebaseClients{}
	if clients.Auth, err = app.Auth(ctx); err != nil {
		return nil, err
	}
	if databaseURL != "" {
		if clients.Database, err = app.Database(ctx); err != nil {
			return nil, err
		}
	}
	return clients, nil
}

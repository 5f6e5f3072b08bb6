package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"proposals/db"
	"proposals/models"
)

// ClientService обслуживает клиентов; предложения ссылаются на них по id
type ClientService struct {
	store Store
	log   *logrus.Logger
}

func NewClientService(store Store, log *logrus.Logger) *ClientService {
	return &ClientService{store: store, log: log}
}

func (s *ClientService) Create(ctx context.Context, c *models.Client) error {
	if err := s.store.CreateClient(ctx, c); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"client_id": c.ID}).Info("client.created")
	return nil
}

func (s *ClientService) Get(ctx context.Context, id int) (*models.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{Entity: "client", ID: id}
	}
	return c, err
}

func (s *ClientService) Exists(ctx context.Context, id int) (bool, error) {
	return s.store.ClientExists(ctx, id)
}

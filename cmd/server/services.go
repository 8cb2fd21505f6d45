package main

import (
	associationapp "github.com/foncier/backend/internal/application/association"
	dossierapp "github.com/foncier/backend/internal/application/dossier"
	geoapp "github.com/foncier/backend/internal/application/geo"
	"github.com/foncier/backend/internal/application/numbering"
	"github.com/foncier/backend/internal/application/pricing"
)

// Services is the application surface handed to whichever transport embeds the process
type Services struct {
	Dossiers     *dossierapp.DossierService
	Properties   *dossierapp.PropertyService
	Intake       *dossierapp.IntakeService
	Associations *associationapp.Ranker
	Numbering    *numbering.Service
	Tariffs      *pricing.TariffService
	Stats        *geoapp.StatsService
	Scopes       *geoapp.Resolver
}

// Names lists the services that were wired
func (s *Services) Names() []string {
	var names []string
	add := func(name string, ok bool) {
		if ok {
			names = append(names, name)
		}
	}
	add("dossiers", s.Dossiers != nil)
	add("properties", s.Properties != nil)
	add("intake", s.Intake != nil)
	add("associations", s.Associations != nil)
	add("numbering", s.Numbering != nil)
	add("tariffs", s.Tariffs != nil)
	add("stats", s.Stats != nil)
	add("scopes", s.Scopes != nil)
	return names
}

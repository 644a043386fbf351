package models

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Project identifies a published project. Version is the leading
// dot-segment of the project base name, the rest is the name.
type Project struct {
	Name    string `json:"name" yaml:"name" xml:"name" validate:"required"`
	Version string `json:"version" yaml:"version" xml:"version"`
}

// Service holds the WMS server properties of a project.
type Service struct {
	ContactOrganization string `json:"contact_organization,omitempty" yaml:"contact_organization,omitempty" xml:"contact_organization,omitempty"`
	ContactMail         string `json:"contact_mail,omitempty" yaml:"contact_mail,omitempty" xml:"contact_mail,omitempty"`
	ContactPerson       string `json:"contact_person,omitempty" yaml:"contact_person,omitempty" xml:"contact_person,omitempty"`
	ContactPhone        string `json:"contact_phone,omitempty" yaml:"contact_phone,omitempty" xml:"contact_phone,omitempty"`
	ContactPosition     string `json:"contact_position,omitempty" yaml:"contact_position,omitempty" xml:"contact_position,omitempty"`
	Fees                string `json:"fees,omitempty" yaml:"fees,omitempty" xml:"fees,omitempty"`
	KeywordList         string `json:"keyword_list,omitempty" yaml:"keyword_list,omitempty" xml:"keyword_list,omitempty"`
	OnlineResource      string `json:"online_resource,omitempty" yaml:"online_resource,omitempty" xml:"online_resource,omitempty"`
	ServiceAbstract     string `json:"service_abstract,omitempty" yaml:"service_abstract,omitempty" xml:"service_abstract,omitempty"`
	ServiceTitle        string `json:"service_title,omitempty" yaml:"service_title,omitempty" xml:"service_title,omitempty"`
	ResourceURL         string `json:"resource_url,omitempty" yaml:"resource_url,omitempty" xml:"resource_url,omitempty"`
}

// MetaData carries the descriptive project metadata.
type MetaData struct {
	Service          Service  `json:"service" yaml:"service" xml:"service"`
	Author           string   `json:"author,omitempty" yaml:"author,omitempty" xml:"author,omitempty"`
	Categories       []string `json:"categories,omitempty" yaml:"categories,omitempty" xml:"categories>category,omitempty"`
	CreationDateTime string   `json:"creation_datetime,omitempty" yaml:"creation_datetime,omitempty" xml:"creation_datetime,omitempty"`
	Language         string   `json:"language,omitempty" yaml:"language,omitempty" xml:"language,omitempty"`
	Links            []string `json:"links,omitempty" yaml:"links,omitempty" xml:"links>link,omitempty"`
}

// TreeGroup is one layer-tree node: a group name and the names of its
// direct children (groups or layers).
type TreeGroup struct {
	Name     string   `json:"name" yaml:"name" xml:"name"`
	Children []string `json:"children" yaml:"children" xml:"children>child"`
}

// Tree is the published layer tree, flattened to group membership lists.
type Tree struct {
	Members []TreeGroup `json:"members" yaml:"members" xml:"members>group"`
}

// Datasets collects every dataset of a theme by family.
type Datasets struct {
	Vector []Vector `json:"vector" yaml:"vector" xml:"vector>layer"`
	Raster []Raster `json:"raster" yaml:"raster" xml:"raster>layer"`
	Custom []Custom `json:"custom" yaml:"custom" xml:"custom>layer"`
	Group  []Group  `json:"group" yaml:"group" xml:"group>entry"`
}

// ThemeConfig is the portable project configuration produced by the
// exporter and consumed by submitters to inline layer definitions into
// jobs.
type ThemeConfig struct {
	XMLName  xml.Name `json:"-" yaml:"-" xml:"theme"`
	Project  Project  `json:"project" yaml:"project" xml:"project" validate:"required"`
	MetaData MetaData `json:"meta_data" yaml:"meta_data" xml:"meta_data"`
	Tree     Tree     `json:"tree" yaml:"tree" xml:"tree"`
	Datasets Datasets `json:"datasets" yaml:"datasets" xml:"datasets"`
}

// Validate checks the assembled config against its struct tags.
func (c *ThemeConfig) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// VectorByName finds a vector dataset by its published name.
func (c *ThemeConfig) VectorByName(name string) (*Vector, bool) {
	for i := range c.Datasets.Vector {
		if c.Datasets.Vector[i].Name == name {
			return &c.Datasets.Vector[i], true
		}
	}
	return nil, false
}

// RasterByName finds a raster dataset by its published name.
func (c *ThemeConfig) RasterByName(name string) (*Raster, bool) {
	for i := range c.Datasets.Raster {
		if c.Datasets.Raster[i].Name == name {
			return &c.Datasets.Raster[i], true
		}
	}
	return nil, false
}

// CustomByName finds a custom dataset by its published name.
func (c *ThemeConfig) CustomByName(name string) (*Custom, bool) {
	for i := range c.Datasets.Custom {
		if c.Datasets.Custom[i].Name == name {
			return &c.Datasets.Custom[i], true
		}
	}
	return nil, false
}

// ThemeDocument is a stored theme registry entry.
type ThemeDocument struct {
	Name      string      `json:"name" badgerhold:"key"`
	Config    ThemeConfig `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewThemeDocument wraps a config for storage under the given name; an
// empty name falls back to the config's project name.
func NewThemeDocument(name string, config ThemeConfig) (*ThemeDocument, error) {
	if name == "" {
		name = config.Project.Name
	}
	if name == "" {
		return nil, fmt.Errorf("theme document needs a name")
	}
	now := time.Now()
	return &ThemeDocument{
		Name:      name,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/handlers"
	"github.com/sei-platform/seibackend/repository"
)

// demoResearchers are loaded by "seed --demo" so the aggregation and search pages
// have something to show on a fresh install.
var demoResearchers = []map[string]interface{}{
	{
		"nombre_completo":         "María López Hernández",
		"correo":                  "maria.lopez@example.mx",
		"institucion":             "Universidad Autónoma de Nayarit",
		"area":                    "Biotecnología",
		"disciplina":              "Microbiología",
		"nivel_sni":               "nivel_1",
		"proyectos_investigacion": "Bioprocesos para residuos agroindustriales\nEnzimas termoestables de origen marino",
		"articulos":               "López M., Ruiz J. (2021) Enzimas termoestables en biorreactores\nLópez M. (2023) Residuos de caña como sustrato",
	},
	{
		"nombre_completo":         "Juan Ruiz Castañeda",
		"correo":                  "juan.ruiz@example.mx",
		"institucion":             "Instituto Tecnológico de Tepic",
		"area":                    "Biotecnología",
		"especialidad":            "Ingeniería de bioprocesos",
		"nivel_sni":               "candidato",
		"proyectos_investigacion": "Escalamiento de fermentadores",
		"libros":                  "Ruiz J. (2019) Fundamentos de fermentación industrial",
	},
	{
		"nombre_completo":     "Ana Sofía Medina",
		"correo":              "ana.medina@example.mx",
		"institucion":         "Universidad Autónoma de Nayarit",
		"area":                "Ciencias Sociales",
		"linea_investigacion": "Migración y desarrollo regional",
		"articulos":           "Medina A. (2022) Remesas y consumo en la costa nayarita",
		"memorias":            "Medina A. (2020) Congreso Nacional de Estudios Regionales",
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the administrator account and optional demo data",
	Long: `Seed creates (or promotes) the administrator account given by --admin-email and
--admin-password, falling back to ADMIN_EMAIL and ADMIN_PASSWORD. With --demo it
also loads a few example researcher registrations. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("admin-email")
		password, _ := cmd.Flags().GetString("admin-password")
		nombre, _ := cmd.Flags().GetString("admin-nombre")
		demo, _ := cmd.Flags().GetBool("demo")
		if email == "" {
			email = os.Getenv("ADMIN_EMAIL")
		}
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		if email == "" || password == "" {
			return errors.New("an admin email and password are required (--admin-email/--admin-password or ADMIN_EMAIL/ADMIN_PASSWORD)")
		}

		_, log, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		defer db.Close()

		if err := database.AutoMigrateModels(db.Gorm); err != nil {
			return err
		}

		created, err := handlers.EnsureAdmin(repository.NewGormUserRepository(db.Gorm), email, nombre, password)
		if err != nil {
			return err
		}
		log.Info("admin account ready", "email", email, "created", created)

		if !demo {
			return nil
		}
		n, err := seedDemoResearchers(cmd.Context(), db.Store())
		if err != nil {
			return err
		}
		log.Info("demo researchers loaded", "inserted", n)
		return nil
	},
}

// seedDemoResearchers skips rows whose correo already exists.
func seedDemoResearchers(ctx context.Context, store *database.Store) (int, error) {
	existing, err := store.ListResearchers(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.Correo] = true
	}

	inserted := 0
	for _, fields := range demoResearchers {
		correo, _ := fields["correo"].(string)
		if seen[correo] {
			continue
		}
		if _, err := store.CreateResearcher(ctx, nil, fields); err != nil {
			return inserted, fmt.Errorf("failed to seed '%s': %w", correo, err)
		}
		inserted++
	}
	return inserted, nil
}

func init() {
	seedCmd.Flags().String("admin-email", "", "administrator email")
	seedCmd.Flags().String("admin-password", "", "administrator password")
	seedCmd.Flags().String("admin-nombre", "Administrador", "administrator display name")
	seedCmd.Flags().Bool("demo", false, "also load example researcher registrations")

	rootCmd.AddCommand(seedCmd)
}

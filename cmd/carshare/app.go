package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/geocoder89/carshare/internal/client/api"
	"github.com/geocoder89/carshare/internal/client/forms"
	"github.com/geocoder89/carshare/internal/client/session"
	"github.com/geocoder89/carshare/internal/domain/car"
)

var errLoginRequired = errors.New("login required")

const requestTimeout = 15 * time.Second

type app struct {
	sess   *session.Session
	api    *api.Client
	in     *bufio.Reader
	out    io.Writer
	secret func(in *bufio.Reader, out io.Writer, label string) (string, error)
}

// run dispatches one command. Each command maps to a client route and goes
// through session gating before it touches the API.
func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "home":
		return a.home()
	case "listings":
		return a.listings(ctx, args)
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout()
	case "dashboard":
		return a.dashboard(ctx)
	case "profile":
		return a.profile(ctx, args)
	case "add-listing":
		return a.addListing(ctx, args)
	case "my-listings":
		return a.myListings(ctx)
	case "help", "-h", "--help":
		printUsage(a.out)
		return nil
	default:
		printUsage(a.out)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: carshare <command> [flags]

commands:
  home                               welcome page
  listings [--location --max-price]  browse available cars
  signup                             create an account
  login                              sign in
  logout                             sign out
  dashboard                          account overview
  profile [show|set]                 view or edit your driver profile
  add-listing                        list a car
  my-listings                        cars you listed
`)
}

func (a *app) guard(route string) error {
	if _, ok := a.sess.Authorize(route); !ok {
		return errLoginRequired
	}
	return nil
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, requestTimeout)
}

// authFailed reports responses meaning the stored token is no longer usable.
func authFailed(err error) bool {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// call runs a protected request and signs the user out when the server
// rejects the token.
func (a *app) call(err error) error {
	if err != nil && authFailed(err) {
		_ = a.sess.Logout()
		return errLoginRequired
	}
	return err
}

func (a *app) home() error {
	fmt.Fprintln(a.out, "Car Sharing Platform")
	fmt.Fprintln(a.out, "Rent cars from people near you, or earn by listing your own.")

	if u, ok := a.sess.User(); ok {
		fmt.Fprintf(a.out, "\nSigned in as %s <%s>\n", u.Name, u.Email)
		fmt.Fprintln(a.out, "Try: carshare dashboard | carshare add-listing | carshare my-listings")
		return nil
	}
	fmt.Fprintln(a.out, "\nTry: carshare listings | carshare signup | carshare login")
	return nil
}

func (a *app) listings(ctx context.Context, args []string) error {
	fs := a.flags("listings")
	location := fs.String("location", "", "Location substring, case-insensitive")
	maxPrice := fs.String("max-price", "", "Maximum price per day")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		cars []car.Car
		err  error
	)

	if strings.TrimSpace(*location) == "" && strings.TrimSpace(*maxPrice) == "" {
		cars, err = a.api.ListCars(ctx)
	} else {
		var price *float64
		if s := strings.TrimSpace(*maxPrice); s != "" {
			p, perr := strconv.ParseFloat(s, 64)
			if perr != nil || p < 0 {
				return forms.Errors{"max-price": "Enter a non-negative number"}
			}
			price = &p
		}
		cars, err = a.api.SearchCars(ctx, *location, price)
	}
	if err != nil {
		return err
	}

	if len(cars) == 0 {
		fmt.Fprintln(a.out, "No cars available matching your search.")
		return nil
	}
	printCars(a.out, cars, true)
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := a.flags("signup")
	name := fs.String("name", "", "Full name")
	email := fs.String("email", "", "Email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var f forms.Signup
	var err error

	if f.Name, err = ask(a.in, a.out, "Name", *name); err != nil {
		return err
	}
	if f.Email, err = ask(a.in, a.out, "Email", *email); err != nil {
		return err
	}
	if f.Password, err = a.secret(a.in, a.out, "Password"); err != nil {
		return err
	}
	if f.ConfirmPassword, err = a.secret(a.in, a.out, "Confirm password"); err != nil {
		return err
	}

	if err := forms.Validate(f); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := a.api.SignUp(ctx, f.Request())
	if err != nil {
		return err
	}
	if err := a.sess.Login(res.User, res.Token); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s. Welcome, %s!\n", res.Message, res.User.Name)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := forms.Login{Password: *password}
	var err error

	if f.Email, err = ask(a.in, a.out, "Email", *email); err != nil {
		return err
	}
	if f.Password == "" {
		if f.Password, err = a.secret(a.in, a.out, "Password"); err != nil {
			return err
		}
	}

	if err := forms.Validate(f); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := a.api.Login(ctx, f.Request())
	if err != nil {
		return err
	}
	if err := a.sess.Login(res.User, res.Token); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s. Signed in as %s.\n", res.Message, res.User.Email)
	return nil
}

func (a *app) logout() error {
	if err := a.sess.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *app) dashboard(ctx context.Context) error {
	if err := a.guard("/dashboard"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	me, err := a.api.Me(ctx, a.sess.Token())
	if err := a.call(err); err != nil {
		return err
	}
	if err := a.sess.UpdateUser(session.Patch{Name: &me.Name, Email: &me.Email}); err != nil {
		return err
	}

	cars, err := a.api.MyCars(ctx, a.sess.Token())
	if err := a.call(err); err != nil {
		return err
	}

	available := 0
	for _, c := range cars {
		if c.Availability {
			available++
		}
	}

	fmt.Fprintf(a.out, "Welcome back, %s\n\n", me.Name)
	fmt.Fprintf(a.out, "Listed cars:     %d\n", len(cars))
	fmt.Fprintf(a.out, "Available now:   %d\n", available)

	_, err = a.api.GetProfile(ctx, a.sess.Token())
	switch {
	case errors.Is(err, api.ErrProfileNotFound):
		fmt.Fprintln(a.out, "Driver profile:  missing (run `carshare profile set`)")
	case err != nil:
		return a.call(err)
	default:
		fmt.Fprintln(a.out, "Driver profile:  complete")
	}
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	if err := a.guard("/profile"); err != nil {
		return err
	}

	sub := "show"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "show":
		return a.showProfile(ctx)
	case "set":
		return a.setProfile(ctx, args)
	default:
		return fmt.Errorf("usage: carshare profile [show|set]")
	}
}

func (a *app) showProfile(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	p, err := a.api.GetProfile(ctx, a.sess.Token())
	if errors.Is(err, api.ErrProfileNotFound) {
		fmt.Fprintln(a.out, "No profile yet. Run `carshare profile set` to create one.")
		return nil
	}
	if err := a.call(err); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "First name:\t%s\n", p.FirstName)
	fmt.Fprintf(tw, "Last name:\t%s\n", p.LastName)
	fmt.Fprintf(tw, "Phone:\t%s\n", p.PhoneNumber)
	fmt.Fprintf(tw, "License:\t%s\n", p.LicenseNumber)
	fmt.Fprintf(tw, "Updated:\t%s\n", p.UpdatedAt.Local().Format(time.RFC1123))
	return tw.Flush()
}

func (a *app) setProfile(ctx context.Context, args []string) error {
	fs := a.flags("profile set")
	first := fs.String("first-name", "", "First name")
	last := fs.String("last-name", "", "Last name")
	phone := fs.String("phone", "", "Phone number")
	license := fs.String("license", "", "Driver license number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var f forms.Profile
	var err error

	if f.FirstName, err = ask(a.in, a.out, "First name", *first); err != nil {
		return err
	}
	if f.LastName, err = ask(a.in, a.out, "Last name", *last); err != nil {
		return err
	}
	if f.PhoneNumber, err = ask(a.in, a.out, "Phone number", *phone); err != nil {
		return err
	}
	if f.LicenseNumber, err = ask(a.in, a.out, "License number", *license); err != nil {
		return err
	}

	if err := forms.Validate(f); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, created, err := a.api.SaveProfile(ctx, a.sess.Token(), f.Request())
	if err := a.call(err); err != nil {
		return err
	}

	if created {
		fmt.Fprintln(a.out, "Profile created.")
	} else {
		fmt.Fprintln(a.out, "Profile updated.")
	}
	return nil
}

func (a *app) addListing(ctx context.Context, args []string) error {
	if err := a.guard("/add-listing"); err != nil {
		return err
	}

	fs := a.flags("add-listing")
	carMake := fs.String("make", "", "Make, e.g. Toyota")
	model := fs.String("model", "", "Model, e.g. Corolla")
	year := fs.String("year", "", "Model year")
	location := fs.String("location", "", "Pickup location")
	price := fs.String("price", "", "Price per day")
	available := fs.Bool("available", true, "Available for rent right away")
	description := fs.String("description", "", "Optional description")
	imageURL := fs.String("image-url", "", "Optional image URL")
	imageFile := fs.String("image", "", "Optional image file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := forms.AddListing{
		Available:   *available,
		Description: *description,
		ImageURL:    *imageURL,
	}
	var err error

	if f.Make, err = ask(a.in, a.out, "Make", *carMake); err != nil {
		return err
	}
	if f.Model, err = ask(a.in, a.out, "Model", *model); err != nil {
		return err
	}
	if f.Year, err = ask(a.in, a.out, "Year", *year); err != nil {
		return err
	}
	if f.Location, err = ask(a.in, a.out, "Location", *location); err != nil {
		return err
	}
	if f.PricePerDay, err = ask(a.in, a.out, "Price per day", *price); err != nil {
		return err
	}

	if err := forms.Validate(f); err != nil {
		return err
	}

	if *imageFile != "" {
		url, err := a.uploadImage(ctx, *imageFile)
		if err != nil {
			return err
		}
		f.ImageURL = url
	}

	req, err := f.Request()
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	c, err := a.api.CreateCar(ctx, a.sess.Token(), req)
	if err := a.call(err); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Car listed successfully: %d %s %s in %s at $%.2f/day\n",
		c.Year, c.Make, c.Model, c.Location, c.PricePerDay)
	return nil
}

func (a *app) uploadImage(ctx context.Context, path string) (string, error) {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if contentType == "" {
		return "", forms.Errors{"image": "Use a .jpg, .png or .webp file"}
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ticket, err := a.api.PresignImage(ctx, a.sess.Token(), contentType)
	if err := a.call(err); err != nil {
		return "", err
	}

	if err := a.api.UploadImage(ctx, ticket.UploadURL, contentType, file); err != nil {
		return "", err
	}
	return ticket.ImageURL, nil
}

func (a *app) myListings(ctx context.Context) error {
	if err := a.guard("/my-listings"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cars, err := a.api.MyCars(ctx, a.sess.Token())
	if err := a.call(err); err != nil {
		return err
	}

	if len(cars) == 0 {
		fmt.Fprintln(a.out, "You have not listed any cars yet. Run `carshare add-listing`.")
		return nil
	}
	printCars(a.out, cars, false)
	return nil
}

func printCars(w io.Writer, cars []car.Car, withOwner bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	header := "CAR\tLOCATION\tPRICE/DAY\tSTATUS"
	if withOwner {
		header += "\tOWNER"
	}
	fmt.Fprintln(tw, header)

	for _, c := range cars {
		status := "available"
		if !c.Availability {
			status = "unavailable"
		}

		line := fmt.Sprintf("%d %s %s\t%s\t$%.2f\t%s", c.Year, c.Make, c.Model, c.Location, c.PricePerDay, status)
		if withOwner {
			owner := "-"
			if c.User != nil {
				owner = c.User.Name
			}
			line += "\t" + owner
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}

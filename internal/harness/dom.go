package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/pavanmanishd/stackarena/internal/jsrt"
)

const (
	tagManagerURL = "https://www.googletagmanager.com/gtm.js?ver=5.7.1&id="
	tagManagerID  = "GTM-KQRQVWK"
	dataLayer     = "dataLayer"
)

// installDOM publishes a fabricated window and document on the global
// object, just enough for the tag manager bootstrap to run.
func installDOM(ctx *jsrt.Context, out io.Writer) error {
	global := ctx.Global()
	window, err := ctx.NewObject()
	if err != nil {
		return err
	}
	if err := ctx.SetProperty(global, "window", window); err != nil {
		return err
	}

	document, err := ctx.NewObject()
	if err != nil {
		return err
	}
	byTag, err := ctx.NewFunction("getElementsByTagName", getElementsByTagName(out))
	if err != nil {
		return err
	}
	if err := ctx.SetProperty(document, "getElementsByTagName", byTag); err != nil {
		return err
	}
	create, err := ctx.NewFunction("createElement", createElement)
	if err != nil {
		return err
	}
	if err := ctx.SetProperty(document, "createElement", create); err != nil {
		return err
	}
	return ctx.SetProperty(global, "document", document)
}

// getElementsByTagName returns a one-element list whose element has a
// parentNode able to insertBefore.
func getElementsByTagName(out io.Writer) jsrt.CFunction {
	return func(ctx *jsrt.Context, this jsrt.Value, args []jsrt.Value) (jsrt.Value, error) {
		list, err := ctx.NewArray()
		if err != nil {
			return jsrt.UndefinedValue, err
		}
		elem, err := ctx.NewObject()
		if err != nil {
			return jsrt.UndefinedValue, err
		}
		if err := ctx.Push(list, elem); err != nil {
			return jsrt.UndefinedValue, err
		}
		parent, err := ctx.NewObject()
		if err != nil {
			return jsrt.UndefinedValue, err
		}
		if err := ctx.SetProperty(elem, "parentNode", parent); err != nil {
			return jsrt.UndefinedValue, err
		}
		insert, err := ctx.NewFunction("insertBefore", insertBefore(out))
		if err != nil {
			return jsrt.UndefinedValue, err
		}
		if err := ctx.SetProperty(parent, "insertBefore", insert); err != nil {
			return jsrt.UndefinedValue, err
		}
		return list, nil
	}
}

func createElement(ctx *jsrt.Context, this jsrt.Value, args []jsrt.Value) (jsrt.Value, error) {
	return ctx.NewObject()
}

// insertBefore prints the src of the inserted element.
func insertBefore(out io.Writer) jsrt.CFunction {
	return func(ctx *jsrt.Context, this jsrt.Value, args []jsrt.Value) (jsrt.Value, error) {
		if len(args) == 0 {
			return jsrt.UndefinedValue, nil
		}
		src, err := ctx.GetProperty(args[0], "src")
		if err != nil {
			return jsrt.UndefinedValue, err
		}
		str, err := ctx.ToString(src)
		if err != nil {
			return jsrt.UndefinedValue, err
		}
		fmt.Fprintf(out, "src: %s\n", str)
		return jsrt.UndefinedValue, nil
	}
}

// evalTagManager runs the tag manager bootstrap:
//
//	(function(w,d,s,l,i){
//	  w[l]=w[l]||[];
//	  w[l].push({'gtm.start': new Date().getTime(), event:'gtm.js'});
//	  var f=d.getElementsByTagName(s)[0], j=d.createElement(s),
//	      dl=l!='dataLayer'?'&l='+l:'';
//	  j.async=true;
//	  j.src='https://www.googletagmanager.com/gtm.js?ver=5.7.1&id='+i+dl;
//	  f.parentNode.insertBefore(j,f);
//	})(window,document,'script','dataLayer','GTM-KQRQVWK');
func evalTagManager(ctx *jsrt.Context, now time.Time) error {
	global := ctx.Global()
	w, err := ctx.GetProperty(global, "window")
	if err != nil {
		return err
	}
	d, err := ctx.GetProperty(global, "document")
	if err != nil {
		return err
	}
	s, err := ctx.NewString("script")
	if err != nil {
		return err
	}
	l, err := ctx.NewString(dataLayer)
	if err != nil {
		return err
	}
	i, err := ctx.NewString(tagManagerID)
	if err != nil {
		return err
	}

	layerName, err := ctx.ToString(l)
	if err != nil {
		return err
	}
	layer, err := ctx.GetProperty(w, layerName)
	if err != nil {
		return err
	}
	if !ctx.Truthy(layer) {
		if layer, err = ctx.NewArray(); err != nil {
			return err
		}
		if err := ctx.SetProperty(w, layerName, layer); err != nil {
			return err
		}
	}
	entry, err := ctx.NewObject()
	if err != nil {
		return err
	}
	if err := ctx.SetProperty(entry, "gtm.start", jsrt.NumberValue(float64(now.UnixMilli()))); err != nil {
		return err
	}
	event, err := ctx.NewString("gtm.js")
	if err != nil {
		return err
	}
	if err := ctx.SetProperty(entry, "event", event); err != nil {
		return err
	}
	if err := ctx.Push(layer, entry); err != nil {
		return err
	}

	byTag, err := ctx.GetProperty(d, "getElementsByTagName")
	if err != nil {
		return err
	}
	list, err := ctx.Call(byTag, d, s)
	if err != nil {
		return err
	}
	f := ctx.Index(list, 0)
	create, err := ctx.GetProperty(d, "createElement")
	if err != nil {
		return err
	}
	j, err := ctx.Call(create, d, s)
	if err != nil {
		return err
	}
	dl := ""
	if layerName != dataLayer {
		dl = "&l=" + layerName
	}
	if err := ctx.SetProperty(j, "async", jsrt.BoolValue(true)); err != nil {
		return err
	}
	id, err := ctx.ToString(i)
	if err != nil {
		return err
	}
	src, err := ctx.NewString(tagManagerURL + id + dl)
	if err != nil {
		return err
	}
	if err := ctx.SetProperty(j, "src", src); err != nil {
		return err
	}

	parent, err := ctx.GetProperty(f, "parentNode")
	if err != nil {
		return err
	}
	insert, err := ctx.GetProperty(parent, "insertBefore")
	if err != nil {
		return err
	}
	_, err = ctx.Call(insert, parent, j, f)
	return err
}
